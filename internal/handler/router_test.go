package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
	"github.com/aryan0dhankhar/secretsanta/internal/repository"
	"github.com/aryan0dhankhar/secretsanta/internal/security/audit"
	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
	"github.com/aryan0dhankhar/secretsanta/internal/security/ratelimit"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
	"github.com/aryan0dhankhar/secretsanta/internal/storage"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	activity := audit.NewLogger(log, filepath.Join(dir, "activity.log"))
	store := storage.New(storage.Options{Logger: log, Events: activity, RetryDelay: time.Millisecond})

	users := repository.NewUserRepository(store, filepath.Join(dir, "users.json"), log)
	draws := repository.NewDrawRepository(store, filepath.Join(dir, "pairs.json"), log)
	resets := repository.NewResetRequestRepository(store, filepath.Join(dir, "reset_requests.json"), log)
	tokens := auth.NewTokenManager("test-secret", "secretsanta", time.Hour)
	limiter := ratelimit.NewLimiter(10000, time.Minute)
	t.Cleanup(limiter.Stop)

	router := NewRouter(RouterConfig{
		Auth:          service.NewAuthService(users, tokens, ratelimit.NewMemoryLockout(5, time.Minute), activity, log),
		Users:         service.NewUserService(users, activity, log),
		Draws:         service.NewDrawService(draws, users, activity, log),
		Resets:        service.NewResetService(resets, users, activity, log),
		Activity:      activity,
		Tokens:        tokens,
		Limiter:       limiter,
		Health:        NewHealthHandler(dir, nil, log),
		DefaultLocale: "en",
		Logger:        log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	} else if len(raw) > 0 {
		out["_raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, status, body)
	return body["token"].(string)
}

// bootstrap creates the admin and three active participants.
func (s *testServer) bootstrap() string {
	s.t.Helper()
	status, _ := s.do(http.MethodPost, "/api/setup", "", map[string]string{"password": "adminpw", "password_confirm": "adminpw"})
	require.Equal(s.t, http.StatusCreated, status)
	token := s.login("admin", "adminpw")
	for _, name := range []string{"alice", "bob", "carol"} {
		status, body := s.do(http.MethodPost, "/api/admin/users", token, map[string]string{"username": name, "password": name + "pw"})
		require.Equal(s.t, http.StatusCreated, status, body)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = s.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestSetupFlow(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(http.MethodGet, "/api/setup", "", nil)
	assert.Equal(t, true, body["setup_required"])

	status, body := s.do(http.MethodPost, "/api/setup", "", map[string]string{"password": "adminpw", "password_confirm": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "PASSWORD_MISMATCH", body["code"])

	status, _ = s.do(http.MethodPost, "/api/setup", "", map[string]string{"password": "adminpw", "password_confirm": "adminpw"})
	require.Equal(t, http.StatusCreated, status)

	status, body = s.do(http.MethodPost, "/api/setup", "", map[string]string{"password": "adminpw", "password_confirm": "adminpw"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SETUP_DONE", body["code"])
}

func TestDrawLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.bootstrap()

	status, body := s.do(http.MethodPost, "/api/admin/draws", admin, map[string]any{
		"name": "2025", "participants": []string{"alice", "bob", "carol", "admin"}, "budget": 300, "deadline": "2025-12-24",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.NotContains(t, body, "pairs")
	assert.Len(t, body["participants"], 3)

	status, body = s.do(http.MethodPost, "/api/admin/draws", admin, map[string]any{
		"name": "2025", "participants": []string{"alice", "bob"},
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_NAME", body["code"])

	status, body = s.do(http.MethodPost, "/api/admin/draws", admin, map[string]any{
		"name": "solo", "participants": []string{"alice"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "TOO_FEW_PARTICIPANTS", body["code"])

	status, body = s.do(http.MethodPost, "/api/admin/draws", admin, map[string]any{
		"name": "late", "participants": []string{"alice", "bob"}, "deadline": "24/12/2025",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_DEADLINE", body["code"])

	alice := s.login("alice", "alicepw")
	status, body = s.do(http.MethodGet, "/api/me", alice, nil)
	require.Equal(t, http.StatusOK, status)
	recipient := body["recipient"].(string)
	assert.NotEqual(t, "alice", recipient)
	assert.Contains(t, []string{"bob", "carol"}, recipient)
	assert.Equal(t, 300.0, body["budget"])

	status, body = s.do(http.MethodGet, "/api/me/draws/2025/assignment", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, recipient, body["recipient"])

	status, _ = s.do(http.MethodPut, "/api/me/purchase", alice, map[string]bool{"purchased": true})
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(http.MethodGet, "/api/admin/status", admin, nil)
	require.Equal(t, http.StatusOK, status)
	rows := body["rows"].([]any)
	require.Len(t, rows, 3)
	for _, r := range rows {
		row := r.(map[string]any)
		assert.Equal(t, row["giver"] == "alice", row["purchased"])
	}

	status, _ = s.do(http.MethodPost, "/api/admin/draws/2025/archive", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, body = s.do(http.MethodPut, "/api/me/purchase", alice, map[string]bool{"purchased": false})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NO_ACTIVE_DRAW", body["code"])

	status, _ = s.do(http.MethodPost, "/api/admin/draws/2025/activate", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodDelete, "/api/admin/draws/2025", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, body = s.do(http.MethodDelete, "/api/admin/draws/2025", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestParticipantCannotReachAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.bootstrap()
	alice := s.login("alice", "alicepw")

	status, body := s.do(http.MethodGet, "/api/admin/users", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body = s.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestRegisterAndActivate(t *testing.T) {
	s := newTestServer(t)
	admin := s.bootstrap()

	status, body := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "dave", "password": "davepw", "password_confirm": "davepw",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave", "password": "davepw"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_INACTIVE", body["code"])

	status, _ = s.do(http.MethodPut, "/api/admin/users/dave/active", admin, map[string]bool{"active": true})
	require.Equal(t, http.StatusOK, status)
	s.login("dave", "davepw")
}

func TestResetRequestOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.bootstrap()

	for _, name := range []string{"bob", "ghost"} {
		status, body := s.do(http.MethodPost, "/api/auth/reset-request", "", map[string]string{"username": name})
		assert.Equal(t, http.StatusAccepted, status)
		assert.NotEmpty(t, body["message"])
	}

	status, body := s.do(http.MethodGet, "/api/admin/reset-requests", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["_raw"], `"username":"bob"`)
	assert.NotContains(t, body["_raw"], "ghost")

	status, body = s.do(http.MethodPost, "/api/admin/reset-requests/bob/approve", admin, map[string]string{"password": "newbobpw"})
	require.Equal(t, http.StatusOK, status, body)
	s.login("bob", "newbobpw")
}

func TestInterestsAreSanitized(t *testing.T) {
	s := newTestServer(t)
	s.bootstrap()
	alice := s.login("alice", "alicepw")

	status, body := s.do(http.MethodPut, "/api/me/interests", alice, map[string]string{"interests": "<img src=x onerror=alert(1)>Board games"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Board games", body["interests"])
}

func TestErrorsAreLocalized(t *testing.T) {
	s := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, s.URL+"/api/me?lang=sv", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "UNAUTHORIZED", body.Code)
	assert.Equal(t, "Du måste logga in.", body.Error)
}

func TestActivityRecentAndStream(t *testing.T) {
	s := newTestServer(t)
	admin := s.bootstrap()

	status, body := s.do(http.MethodGet, "/api/admin/activity?n=2", admin, nil)
	require.Equal(t, http.StatusOK, status)
	lines := body["lines"].([]any)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "USER_ADDED - Username: carol")

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/admin/activity?n=1&token=" + admin
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(first), "USER_ADDED - Username: carol")

	status, _ = s.do(http.MethodPut, "/api/admin/users/carol/active", admin, map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, status)

	_, next, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(next), "USER_DEACTIVATED - Username: carol")
}

func TestMapErrorToHTTP(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewDrawError(domain.DrawValidationFailed, "x"), http.StatusInternalServerError, "DRAW_FAILED"},
		{fmt.Errorf("wrap: %w", domain.ErrStorageWrite), http.StatusServiceUnavailable, "STORAGE_WRITE_FAILED"},
		{domain.ErrLockedOut, http.StatusTooManyRequests, "LOCKED_OUT"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code := MapErrorToHTTP(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
