package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFileRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	assert.Empty(t, loadToken())
	require.NoError(t, saveToken("abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", loadToken())

	info, err := os.Stat(tokenFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".secretsanta", "token"), tokenFile())
}

func TestCallSendsTokenAndDecodes(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, saveToken("tok"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "sv", r.Header.Get("Accept-Language"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": body["name"]})
	}))
	defer srv.Close()
	t.Setenv("SANTA_API_URL", srv.URL+"/")
	t.Setenv("SANTA_LANG", "sv")

	var out map[string]string
	require.NoError(t, call(http.MethodPost, "/api/x", map[string]string{"name": "alice"}, &out))
	assert.Equal(t, "alice", out["echo"])
}

func TestCallReturnsAPIError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Name already in use.","code":"DUPLICATE_NAME"}`))
	}))
	defer srv.Close()
	t.Setenv("SANTA_API_URL", srv.URL)

	err := call(http.MethodPost, "/api/admin/draws", map[string]string{}, nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "DUPLICATE_NAME", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "Name already in use.")
}
