// Package validation holds small input validators shared by handlers.
package validation

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ibanRe accepts the general IBAN shape: country code, two check digits,
// then up to 30 alphanumerics. Format check only, no checksum.
var ibanRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// ValidPassword requires at least 8 characters.
func ValidPassword(s string) bool {
	return len(s) >= 8
}

// ValidAmount reports whether a monetary amount is positive and within range.
func ValidAmount(v float64) bool {
	return v > 0 && v <= 1_000_000
}

// NormalizeIBAN strips spaces and uppercases.
func NormalizeIBAN(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// ValidIBAN reports whether s has a plausible IBAN format after normalization.
func ValidIBAN(s string) bool {
	return ibanRe.MatchString(NormalizeIBAN(s))
}
