package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxPasswordBytes is the bcrypt input limit. Longer passwords are rejected
// rather than silently truncated.
const MaxPasswordBytes = 72

// PasswordPolicy holds the strength rules applied at signup.
type PasswordPolicy struct {
	MinLength int
	// MaxRepeat is the longest allowed run of one repeated character.
	MaxRepeat int
	// Denylist entries are matched case-insensitively as substrings.
	Denylist []string
}

// DefaultCommonPasswords are rejected wherever they appear in a password.
var DefaultCommonPasswords = []string{
	"password",
	"passw0rd",
	"123456",
	"qwerty",
	"letmein",
	"welcome",
	"iloveyou",
	"abc123",
	"admin123",
	"monkey",
	"dragon",
	"pension",
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength: 8,
		MaxRepeat: 2,
		Denylist:  DefaultCommonPasswords,
	}
}

// Check returns a weak_password error naming the first rule that failed.
func (p PasswordPolicy) Check(password string) error {
	if password == "" {
		return ErrMissingField("password")
	}
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = 8
	}
	if utf8.RuneCountInString(password) < minLen {
		return ErrWeakPassword("too_short")
	}
	if len(password) > MaxPasswordBytes {
		return ErrWeakPassword("too_long")
	}

	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r):
		default:
			hasSpecial = true
		}
	}
	if !hasLetter {
		return ErrWeakPassword("missing_letter")
	}
	if !hasDigit {
		return ErrWeakPassword("missing_digit")
	}
	if !hasSpecial {
		return ErrWeakPassword("missing_special")
	}

	if p.MaxRepeat > 0 && longestRun(password) > p.MaxRepeat {
		return ErrWeakPassword("repeated_characters")
	}

	lower := strings.ToLower(password)
	for _, common := range p.Denylist {
		if common != "" && strings.Contains(lower, strings.ToLower(common)) {
			return ErrWeakPassword("common_password")
		}
	}
	return nil
}

func longestRun(s string) int {
	best, cur := 0, 0
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			cur++
		} else {
			cur = 1
			prev = r
		}
		if cur > best {
			best = cur
		}
	}
	return best
}
