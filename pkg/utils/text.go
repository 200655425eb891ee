// Package utils provides shared helpers for logging, vector math, and text display.
package utils

// Truncate returns s cut to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// TruncateLeft keeps the last maxLen runes of s, prefixed with "..." if truncated.
// Useful for file paths, where the tail is the informative part.
func TruncateLeft(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return "..." + string(runes[len(runes)-maxLen:])
}
