package validation

import (
	"strings"
	"time"
	"unicode/utf8"
)

func ValidateName(name string) error {
	return Required("name", name, 100)
}

// Required rejects blank values and values longer than max runes.
func Required(field, value string, max int) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return New(field, "%s is required", field)
	}
	return MaxLength(field, trimmed, max)
}

func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return New(field, "%s is too long (max %d characters)", field, max)
	}
	return nil
}

func ValidateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return New("timezone", "unknown timezone %q", tz)
	}
	return nil
}

// ValidateRange requires end to be at or after start.
func ValidateRange(field string, start, end time.Time) error {
	if end.Before(start) {
		return New(field, "end must not be before start")
	}
	return nil
}
