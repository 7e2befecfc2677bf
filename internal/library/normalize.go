package library

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mptreasury/pkg/utils"
)

// ASCII decomposes s (NFKD) and drops every rune outside ASCII, so accented
// letters fall back to their base letter. Case is preserved.
func ASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// PathComponent turns a name into a safe ASCII path element.
func PathComponent(name, fallback string) string {
	clean := utils.SanitizePathComponent(ASCII(name))
	if clean == "" || clean == "." || clean == ".." {
		return fallback
	}
	return clean
}
