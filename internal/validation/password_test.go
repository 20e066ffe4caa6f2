package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		personal []string
		wantErr  string
	}{
		{"letters and digits", "Secret123", nil, ""},
		{"letters and symbols", "correct-horse", nil, ""},
		{"unicode letters", "Ångström-12", nil, ""},
		{"max length", strings.Repeat("a", 127) + "1", nil, ""},
		{"too short", "abc12", nil, "at least 8"},
		{"too long", strings.Repeat("a", 128) + "1", nil, "exceed 128"},
		{"letters only", "onlyletters", nil, "mix letters"},
		{"digits only", "1234567890", nil, "mix letters"},
		{"common", "Password123", nil, "too common"},
		{"contains name", "grace-2024!", []string{"Grace", "g@example.com"}, "name or email"},
		{"contains email local part", "xx-adalove-xx", []string{"", "adalove@example.com"}, "name or email"},
		{"short personal ignored", "al-pha-beta9", []string{"Al"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.personal...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateEmailAndName(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateEmail("ada@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Ada <ada@example.com>"))

	assert.NoError(t, ValidateName("Ada Lovelace"))
	assert.Error(t, ValidateName("   "))
	assert.Error(t, ValidateName(strings.Repeat("x", 101)))
}
