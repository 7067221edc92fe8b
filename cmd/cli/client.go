package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiError is the server's error envelope
type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func getAPIURL() string {
	if url := os.Getenv("SANTA_API_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080"
}

// call sends body as JSON to path and decodes a 2xx response into out.
func call(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getAPIURL()+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if lang := os.Getenv("SANTA_LANG"); lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	addAuthHeader(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func tokenDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".secretsanta")
}

func tokenFile() string {
	return filepath.Join(tokenDir(), "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(tokenDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, err := os.ReadFile(tokenFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func addAuthHeader(req *http.Request) {
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// readPassword prompts without echo on a terminal and reads a plain line otherwise.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// passwordPair returns flagValue or prompts twice.
func passwordPair(flagValue string) (string, string, error) {
	if flagValue != "" {
		return flagValue, flagValue, nil
	}
	pw, err := readPassword("Password: ")
	if err != nil {
		return "", "", err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", "", err
	}
	return pw, confirm, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "✗ %v\n", err)
	os.Exit(1)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
