// Package testkit holds the helpers tests across the module share
package testkit

import (
	"strings"
	"sync"
	"testing"
)

// serial is held by every test that called Serial
var serial sync.Mutex

// Swap points *target at v until t ends; use it for package level seams
func Swap[T any](t testing.TB, target *T, v T) {
	t.Helper()
	prev := *target
	*target = v
	t.Cleanup(func() { *target = prev })
}

// Serial keeps t from overlapping any other Serial test, parallel or not
func Serial(t testing.TB) {
	t.Helper()
	serial.Lock()
	t.Cleanup(serial.Unlock)
}

// MustPanic fails t unless fn panics and returns what it panicked with
func MustPanic(t testing.TB, fn func()) (v any) {
	t.Helper()
	defer func() {
		if v = recover(); v == nil {
			t.Fatal("expected a panic")
		}
	}()
	fn()
	return nil
}

// MustContain fails t unless s contains sub; long output is cut to its tail
func MustContain(t testing.TB, s, sub string) {
	t.Helper()
	if strings.Contains(s, sub) {
		return
	}
	const keep = 2048
	shown := s
	if len(shown) > keep {
		shown = "..." + shown[len(shown)-keep:]
	}
	t.Fatalf("missing %q in:\n%s", sub, shown)
}
