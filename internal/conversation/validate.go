package conversation

import (
	"regexp"
	"strings"
)

// local part, '@', domain with at least one dot; no '@' anywhere else.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// ValidateEmail performs a permissive syntactic check of an address.
// It does not follow RFC 5322 and says nothing about deliverability.
func ValidateEmail(candidate string) bool {
	return emailPattern.MatchString(candidate)
}

// Blank reports whether s has no visible content.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// isSkipToken reports whether text declines the attachment.
func isSkipToken(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "no")
}
