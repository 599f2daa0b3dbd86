// Package validator normalizes and checks contact addresses before a send is attempted.
package validator

import (
	"regexp"
	"strings"
)

const DefaultCountryCode = "1"

var (
	nonDigits = regexp.MustCompile(`\D`)
	// Lax on purpose: it only guards against hard bounces.
	emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// forbiddenWords are phrases that tend to trip carrier and mailbox spam filters.
var forbiddenWords = []string{
	"free",
	"winner",
	"congratulations",
	"act now",
	"limited time",
	"click here",
	"cash",
	"prize",
	"urgent",
	"guarantee",
	"no cost",
	"risk free",
	"buy now",
	"order now",
	"100% free",
}

// NormalizePhone returns an E.164-like number or "" when raw holds no digits.
// Ten digit numbers are treated as domestic and get countryCode prepended.
func NormalizePhone(raw, countryCode string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return ""
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if len(digits) == 10 {
		return "+" + countryCode + digits
	}
	return "+" + digits
}

func IsValidEmail(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	return emailShape.MatchString(s)
}

// ScanForbiddenWords lists the spam trigger phrases found in text. Matches are informational.
func ScanForbiddenWords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, w := range forbiddenWords {
		if strings.Contains(lower, w) {
			found = append(found, w)
		}
	}
	return found
}
