// Package cleantext prepares clause text before it is signed and sent
// Pipeline order
// 1 drop invalid UTF-8, NUL, DEL, C0 controls other than tab and newline, C1 controls
// 2 fold CRLF and lone CR to LF
// 3 Unicode NFC composition
// 4 remove format characters (ZWSP, ZWJ, BOM and friends)
// 5 trim surrounding whitespace
//
// The cleaned text is both what gets submitted and what the key is derived from,
// so the contract and the client always slice the same code points
package cleantext

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)),
		)
	},
}

// Clean returns the canonical form of s
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = stripControls(s)
	s = foldNewlines(s)

	t := chainPool.Get().(transform.Transformer)
	defer chainPool.Put(t)
	t.Reset()
	out, _, err := transform.String(t, s)
	if err != nil {
		// transformers above never fail on valid UTF-8; keep the stripped input
		out = s
	}
	return strings.TrimSpace(out)
}

// Changed reports whether Clean would alter s
func Changed(s string) bool { return Clean(s) != s }

// stripControls keeps tab, newline and carriage return, drops other controls and bad bytes
func stripControls(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c < utf8.RuneSelf {
			if dropASCII(c) {
				break
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || isC1(r) {
			break
		}
		i += size
	}
	if i == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:i])
	for i < len(s) {
		c := s[i]
		if c < utf8.RuneSelf {
			if !dropASCII(c) {
				b.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || isC1(r) {
			i += size
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

func dropASCII(c byte) bool {
	if c == 0x7F {
		return true
	}
	return c < 0x20 && c != '\n' && c != '\r' && c != '\t'
}

func isC1(r rune) bool { return r >= 0x80 && r <= 0x9F }

func foldNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
