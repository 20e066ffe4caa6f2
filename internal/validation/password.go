// Package validation checks account fields and request payloads.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

var commonPasswords = map[string]struct{}{
	"password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"qwerty123": {}, "iloveyou1": {}, "letmein123": {}, "welcome123": {},
	"admin123": {}, "abc12345": {},
}

// ValidatePassword checks a new password. It needs 8 to 128 characters drawn
// from at least two of letters, digits and symbols, must not be a well-known
// password and must not contain any of personal (name, email local part)
// once those are three characters or longer.
func ValidatePassword(password string, personal ...string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	}
	if n > maxPasswordLen {
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLen)
	}

	var letters, digits, symbols bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letters = true
		case unicode.IsDigit(r):
			digits = true
		case !unicode.IsSpace(r):
			symbols = true
		}
	}
	classes := 0
	for _, ok := range []bool{letters, digits, symbols} {
		if ok {
			classes++
		}
	}
	if classes < 2 {
		return errors.New("password must mix letters with digits or symbols")
	}

	lower := strings.ToLower(password)
	if _, common := commonPasswords[lower]; common {
		return errors.New("password is too common")
	}
	for _, p := range personal {
		p = strings.ToLower(strings.TrimSpace(p))
		if local, _, ok := strings.Cut(p, "@"); ok {
			p = local
		}
		if utf8.RuneCountInString(p) >= 3 && strings.Contains(lower, p) {
			return errors.New("password must not contain your name or email")
		}
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return errors.New("name must not exceed 100 characters")
	}
	return nil
}

// ValidateEmail checks that the address is a bare RFC 5322 address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > 254 {
		return errors.New("email must not exceed 254 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address %q", email)
	}
	return nil
}
