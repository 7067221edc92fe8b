package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiate(t *testing.T) {
	cases := []struct {
		query, header, def, want string
	}{
		{"", "", "sv", "sv"},
		{"en", "sv-SE", "sv", "en"},
		{"", "en-US,en;q=0.9", "sv", "en"},
		{"", "sv-SE,sv;q=0.9,en;q=0.5", "en", "sv"},
		{"", "de-DE", "sv", "sv"},
		{"fr", "", "en", "en"},
		{"", "", "xx", "sv"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Negotiate(tc.query, tc.header, tc.def), "%q %q", tc.query, tc.header)
	}
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "Hittades inte.", Message(Swedish, "NOT_FOUND"))
	assert.Equal(t, "Not found.", Message("de", "NOT_FOUND"))
	assert.Equal(t, "SOMETHING_NEW", Message(Swedish, "SOMETHING_NEW"))
}

func TestCatalogsHaveSameCodes(t *testing.T) {
	for code := range catalog[English] {
		_, ok := catalog[Swedish][code]
		assert.True(t, ok, code)
	}
	assert.Len(t, catalog[Swedish], len(catalog[English]))
}
