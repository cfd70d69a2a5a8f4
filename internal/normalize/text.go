// Package normalize provides the pure normalization primitives the
// pipeline is built on: unit canonicalization, description
// normalization, item-code parsing and locale-aware quantity parsing.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// leadingCode matches an item code at the start of a description so it
// can be stripped before normalization ("1.2.3 Execução de Base").
// Group 1 is the code plus trailing separators; a letter must follow,
// otherwise a bare code like "1.2.3" would lose its own tail segment.
var leadingCode = regexp.MustCompile(`(?i)^(\s*(?:S\d+-|AD\d*-)?\d{1,4}(?:\.\d{1,4})*(?:-[A-Za-z])?[\s.:–-]+)\pL`)

// stripMarks removes diacritics and folds compatibility forms (² → 2).
// The transformer chain carries internal state, so it is built per call;
// callers may run concurrently.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Text uppercases, strips diacritics, collapses non-alphanumeric runs
// to single spaces and trims. Exact equality of two Text results is the
// only grouping equality the pipeline uses.
func Text(raw string) string {
	s := strings.ToUpper(stripMarks(raw))
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}

// Description normalizes a service or requirement description for
// matching. A leading item code is stripped first, so a row whose
// description column still carries its code ("1.2.3 Execução de Base")
// and a bare requirement ("Execução de Base") normalize identically.
func Description(raw string) string {
	s := raw
	if m := leadingCode.FindStringSubmatchIndex(s); m != nil {
		s = s[m[3]:]
	}
	return Text(s)
}
