package validation

import (
	"strings"
)

var commonPasswordPatterns = []string{
	"password", "123456", "qwerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "sunshine",
}

// ValidatePassword enforces a 12 character minimum and bcrypt's 72 byte maximum,
// and rejects passwords built around common patterns.
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return New("password", "password must be at least 12 characters")
	}
	if len(password) > 72 {
		return New("password", "password must not exceed 72 characters")
	}

	lower := strings.ToLower(password)
	for _, pattern := range commonPasswordPatterns {
		if strings.Contains(lower, pattern) {
			return New("password", "password is too common, please choose a stronger one")
		}
	}

	return nil
}
