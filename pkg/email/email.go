// Package email normalizes addresses used to match booking attendees to
// local users.
package email

import (
	"strings"
	"unicode"
)

// Normalize trims and lowercases an address for case-insensitive matching.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeriveNameFromEmail builds a display name from the local part when a
// booking arrives without an attendee name.
func DeriveNameFromEmail(email string) string {
	localPart := strings.TrimSpace(email)
	if at := strings.IndexByte(localPart, '@'); at > 0 {
		localPart = localPart[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Guest"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
