// Package utils provides shared utilities for text, math, and logging.
package utils

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return cutRunes(s, maxLen) + "..."
}

// Preview returns the first maxLen runes of s followed by "...".
// The marker is always appended, matching how source previews are shown to users.
func Preview(s string, maxLen int) string {
	if maxLen <= 0 {
		return s + "..."
	}
	return cutRunes(s, maxLen) + "..."
}

// cutRunes returns at most n runes of s without splitting a UTF-8 sequence.
func cutRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
