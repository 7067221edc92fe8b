package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	assert.Equal(t, "FLAG_DISABLE_REGISTRATION", DisableRegistration.EnvKey())

	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv(DisableRegistration.EnvKey(), v)
		assert.True(t, Enabled(DisableRegistration), v)
	}
	for _, v := range []string{"", "0", "false", "maybe"} {
		t.Setenv(DisableRegistration.EnvKey(), v)
		assert.False(t, Enabled(DisableRegistration), v)
	}
	assert.False(t, Enabled(DisableActivityStream))
}
