// Package htmlsanitize strips markup from user-supplied text before it is
// stored and later rendered into notification templates.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every HTML element and attribute from s, leaving the text
// content. Entities produced by the policy are decoded so the stored value
// is the literal text the user typed.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
