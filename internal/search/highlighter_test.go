package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHighlight(t *testing.T) {
	if got := Highlight("short", "x", 100); got != "short" {
		t.Errorf("short content should be unchanged: %q", got)
	}
	content := strings.Repeat("filler ", 30) + "payment overdue" + strings.Repeat(" tail", 30)
	got := Highlight(content, "payment", 40)
	if !strings.Contains(got, "payment") {
		t.Errorf("window should contain the query term: %q", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("truncated ends should be marked: %q", got)
	}
	if got := Highlight(content, "absent", 10); got != content[:10]+"..." {
		t.Errorf("no match should truncate from start: %q", got)
	}
}

func TestHighlight_RuneBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		query   string
		maxLen  int
		want    string
	}{
		{"match after dotted capital I", strings.Repeat("İ", 40) + " payment " + strings.Repeat("é", 40), "payment", 30, "payment"},
		{"uppercase token in content", strings.Repeat("x ", 40) + "İSTANBUL office" + strings.Repeat(" y", 40), "istanbul", 24, "İSTANBUL"},
		{"no match cuts on rune", strings.Repeat("日本語", 20), "absent", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Highlight(tt.content, tt.query, tt.maxLen)
			if !utf8.ValidString(got) {
				t.Fatalf("invalid UTF-8: %q", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("window %q should contain %q", got, tt.want)
			}
			if body := strings.Trim(got, "."); len(body) > tt.maxLen {
				t.Errorf("window body is %d bytes, max %d", len(body), tt.maxLen)
			}
		})
	}
}
