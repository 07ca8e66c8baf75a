package validation

import (
	"net/mail"
)

// ValidateEmail checks the RFC 5322 address form and the RFC 5321 length limit.
func ValidateEmail(email string) error {
	if email == "" {
		return New("email", "email address is required")
	}
	if len(email) > 254 {
		return New("email", "email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return New("email", "invalid email address format")
	}

	return nil
}
