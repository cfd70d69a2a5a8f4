package normalize

import "strings"

// Unit returns the canonical form of a measurement unit: uppercase, no
// accents or whitespace, superscript and caret exponents folded to
// plain digits ("m²", "M^2" → "M2"). Two units are equal iff their
// canonical forms are byte-equal; no alias table, no conversion.
func Unit(raw string) string {
	s := strings.ToUpper(stripMarks(raw))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '/' || r == '%':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnitsEqual reports whether two raw units share a canonical form.
// Empty canonical forms never match anything, including each other.
func UnitsEqual(a, b string) bool {
	ca, cb := Unit(a), Unit(b)
	if ca == "" || cb == "" {
		return false
	}
	return ca == cb
}
