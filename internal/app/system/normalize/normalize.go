// Package normalize canonicalizes identity fields before they are stored or
// compared, so uniqueness checks and unique indexes see the same value.
package normalize

import (
	"strings"
	"unicode"
)

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims and collapses internal whitespace. Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Username lowercases and trims a username.
func Username(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Mobile strips spaces and common separators from a phone number, keeping a
// leading '+'.
func Mobile(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Region trims and collapses whitespace in a region name.
func Region(s string) string {
	return Name(s)
}

// QueryParam trims a query-string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
