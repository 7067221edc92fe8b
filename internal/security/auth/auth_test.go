package auth

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/secretsanta/internal/domain"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
	assert.False(t, CheckPassword("not-a-hash", "hunter2"))
}

func TestGeneratePassword(t *testing.T) {
	hexPattern := regexp.MustCompile(`^[0-9a-f]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		p, err := GeneratePassword()
		require.NoError(t, err)
		assert.Regexp(t, hexPattern, p)
		seen[p] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "", time.Hour)
	token, expires, err := tm.GenerateToken("alice", domain.RoleParticipant)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleParticipant, claims.Role)
}

func TestTokenRejectsOtherSecretAndExpiry(t *testing.T) {
	token, _, err := NewTokenManager("one", "", time.Hour).GenerateToken("alice", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = NewTokenManager("two", "", time.Hour).ValidateToken(token)
	assert.Error(t, err)

	expired := NewTokenManager("one", "", time.Hour)
	expired.ttl = -time.Minute
	token, _, err = expired.GenerateToken("alice", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = expired.ValidateToken(token)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	tok, err := ExtractToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer a b"} {
		_, err := ExtractToken(h)
		assert.Error(t, err, h)
	}
}
