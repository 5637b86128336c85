package utils

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("Zürich-Köln", 3); got != "Zür..." {
		t.Errorf("got %q, want %q", got, "Zür...")
	}
	if got := Truncate("日本語", 5); got != "日本語" {
		t.Errorf("fewer runes than maxLen should be unchanged, got %q", got)
	}
	if got := Truncate("日本語テキスト", 2); !utf8.ValidString(got) || got != "日本..." {
		t.Errorf("got %q, want %q", got, "日本...")
	}
}
