// Package strings has the few string and slice helpers wiring code shares
package strings

import std "strings"

// Or is in unless it is empty, then def
func Or[T any](in, def []T) []T {
	if len(in) > 0 {
		return in
	}
	return def
}

// Required panics naming what is missing when s is blank
func Required(s, what string) string {
	if std.TrimSpace(s) == "" {
		panic(what + " is required")
	}
	return s
}

// RoutePrefix turns " explanations/ " into "/explanations"; the bare root panics
func RoutePrefix(s string) string {
	p := std.Trim(std.TrimSpace(s), "/ ")
	if p == "" {
		panic("route prefix is required")
	}
	return "/" + p
}

// NullIfBlank maps a blank string to a SQL NULL argument
func NullIfBlank(s string) any {
	if std.TrimSpace(s) == "" {
		return nil
	}
	return s
}
