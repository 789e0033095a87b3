// Package inputval holds format checks for identity fields submitted at
// registration.
package inputval

import (
	"regexp"
	"strings"
)

var (
	localPartRe = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+(\.[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+)*$`)
	domainRe    = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)*$`)
	usernameRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)
	mobileRe    = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// IsValidEmail accepts a bare addr-spec (no display name). Single-label
// domains are allowed so dev and test mail hosts work.
func IsValidEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s || len(s) > 254 {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	local, domain := s[:at], s[at+1:]
	if len(local) > 64 {
		return false
	}
	return localPartRe.MatchString(local) && domainRe.MatchString(domain)
}

// IsValidUsername expects an already-normalized username: 3-32 characters
// of lowercase letters, digits, '.', '_' or '-', starting with a letter or digit.
func IsValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// IsValidMobile expects an already-normalized phone number: 8-15 digits
// with an optional leading '+'.
func IsValidMobile(s string) bool {
	return mobileRe.MatchString(s)
}
