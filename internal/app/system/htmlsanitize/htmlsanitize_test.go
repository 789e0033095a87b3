package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/memberhub/internal/app/system/htmlsanitize"
)

func TestPlainText_Empty(t *testing.T) {
	if got := htmlsanitize.PlainText(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestPlainText_Unchanged(t *testing.T) {
	if got := htmlsanitize.PlainText("Asha Rao"); got != "Asha Rao" {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestPlainText_RemovesScript(t *testing.T) {
	got := htmlsanitize.PlainText("Pune<script>alert('xss')</script>")
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Errorf("expected script removed, got %q", got)
	}
	if !strings.HasPrefix(got, "Pune") {
		t.Errorf("expected text preserved, got %q", got)
	}
}

func TestPlainText_RemovesTags(t *testing.T) {
	got := htmlsanitize.PlainText("<b>Bold</b> <a href=\"javascript:x()\">link</a>")
	if got != "Bold link" {
		t.Errorf("got %q, want %q", got, "Bold link")
	}
}

func TestPlainText_KeepsAmpersand(t *testing.T) {
	got := htmlsanitize.PlainText("Rao & Sons")
	if got != "Rao & Sons" {
		t.Errorf("got %q, want %q", got, "Rao & Sons")
	}
}
