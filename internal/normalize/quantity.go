package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnparsable marks a quantity string the parser cannot read. The
// owning record is dropped with a diagnostic, never defaulted to zero.
var ErrUnparsable = errors.New("quantity unparsable")

// ErrNegative marks a syntactically valid but negative quantity.
var ErrNegative = errors.New("negative quantity")

// ParseQuantity parses a locale-aware decimal. Either '.' or ',' may be
// the decimal mark; the other character, and spaces, group thousands.
// With a single '.' the Brazilian convention wins: "1.250" is one
// thousand two hundred fifty, "1.25" is a fraction.
func ParseQuantity(raw string) (float64, error) {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnparsable)
	}

	neg := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
		}
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	// dec is the byte index of the decimal mark, -1 when all
	// separators are grouping.
	dec := -1
	switch {
	case dots > 0 && commas > 0:
		dec = max(strings.LastIndexByte(s, '.'), strings.LastIndexByte(s, ','))
	case commas == 1:
		dec = strings.LastIndexByte(s, ',')
	case commas > 1:
		if !isGrouped(s, ',') {
			return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
		}
	case dots == 1:
		if !isGrouped(s, '.') {
			dec = strings.LastIndexByte(s, '.')
		}
	case dots > 1:
		if !isGrouped(s, '.') {
			return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case i == dec:
			b.WriteByte('.')
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparsable, raw)
	}
	if neg {
		return 0, fmt.Errorf("%w: %q", ErrNegative, raw)
	}
	return val, nil
}

// isGrouped reports whether sep splits s into thousands groups: a 1-3
// digit head not starting with zero, then groups of exactly three.
func isGrouped(s string, sep byte) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) < 2 {
		return false
	}
	head := parts[0]
	if len(head) < 1 || len(head) > 3 || head[0] == '0' {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}
