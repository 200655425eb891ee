package utils

import (
	"testing"
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
	if got := Truncate("日本語の写真", 3); got != "日本語..." {
		t.Errorf("got %s", got)
	}
}

func TestTruncateLeft(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"/photos/2024/beach.jpg", 10, ".../beach.jpg"},
		{"/photos/2024/beach.jpg", 9, "...beach.jpg"},
		{"/photos/2024/beach.jpg", 0, "/photos/2024/beach.jpg"},
		{"a.png", 9, "a.png"},
		{"/写真/海.jpg", 5, "...海.jpg"},
	}
	for _, tt := range tests {
		if got := TruncateLeft(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("TruncateLeft(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
