// Package keyderive maps submitted clause text to the lookup key the contract stores
// the explanation under. The write side slices the first 60 characters and strips
// surrounding whitespace, so both sides must derive keys identically
package keyderive

import (
	"strings"
	"unicode/utf8"
)

// MaxRunes is the number of leading characters that take part in the key
const MaxRunes = 60

// Derive returns the lookup key for input
// Characters are Unicode code points; invalid UTF-8 bytes count as one character each
// and are kept as-is. Empty or whitespace-only input yields an empty key
func Derive(input string) string {
	return strings.TrimSpace(prefix(input, MaxRunes))
}

// Valid reports whether key can be used for a lookup
func Valid(key string) bool { return key != "" }

// prefix returns the first n characters of s without re-encoding
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Len counts characters the same way Derive does
func Len(s string) int { return utf8.RuneCountInString(s) }
