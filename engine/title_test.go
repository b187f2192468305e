package engine

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{`"Quoted Title"`, "Quoted Title"},
		{"First line\nsecond line", "First line"},
		{"  padded  ", "padded"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := cleanTitle(tt.in); got != tt.want {
			t.Errorf("cleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanTitleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", maxTitleLen+10)

	got := cleanTitle(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated title is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxTitleLen {
		t.Fatalf("truncated title has %d runes, want %d", n, maxTitleLen)
	}
}
