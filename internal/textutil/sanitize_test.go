package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		limit int
		want  string
	}{
		{name: "plain", title: "Example Domain", want: "Example_Domain"},
		{name: "punctuation runs collapse", title: "Go: the -- language!", want: "Go_the_language"},
		{name: "accents fold", title: "Café Crème", want: "Cafe_Creme"},
		{name: "non latin dropped", title: "日本語 News", want: "News"},
		{name: "empty", title: "   ", want: "untitled"},
		{name: "only symbols", title: "!!!", want: "untitled"},
		{name: "custom limit", title: "abcdefghij", limit: 4, want: "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.title, tt.limit); got != tt.want {
				t.Fatalf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitleDefaultLimit(t *testing.T) {
	got := SanitizeTitle(strings.Repeat("word ", 40), 0)
	if len(got) > DefaultTitleLimit {
		t.Fatalf("expected at most %d chars, got %d (%q)", DefaultTitleLimit, len(got), got)
	}
	if strings.HasSuffix(got, "_") {
		t.Fatalf("trailing separator left in %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("Capture Timeout"); got != "capture_timeout" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeToken(""); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}
