package plaid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid sandbox", Config{ClientID: "id", Secret: "secret", Environment: "sandbox"}, false},
		{"valid production", Config{ClientID: "id", Secret: "secret", Environment: "production"}, false},
		{"missing client ID", Config{Secret: "secret", Environment: "sandbox"}, true},
		{"missing secret", Config{ClientID: "id", Environment: "sandbox"}, true},
		{"unknown environment", Config{ClientID: "id", Secret: "secret", Environment: "staging"}, true},
		{"empty environment", Config{ClientID: "id", Secret: "secret"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCleanMerchantName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name untouched", "Spotify", "Spotify"},
		{"strips long digit tail", "AMAZON MKTPLACE 8829431", "AMAZON MKTPLACE"},
		{"keeps short digit tail", "7 11", "7 11"},
		{"strips LLC suffix", "Acme Services LLC", "Acme Services"},
		{"strips stacked suffixes", "Widget Co LLC", "Widget"},
		{"suffix match is case insensitive", "acme inc", "acme"},
		{"collapses whitespace", "Big   Box   Store", "Big Box Store"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMerchantName(tt.input))
		})
	}
}

func TestIsAllDigits(t *testing.T) {
	assert.True(t, isAllDigits("123456"))
	assert.False(t, isAllDigits("12a456"))
	assert.False(t, isAllDigits("12.34"))
}
