// Package models defines data structures for the Atesta extraction and matching pipeline.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PrefixClass identifies which section-numbering scheme an item code belongs to.
// The ordering none < restart < aditivo is part of the sort key.
type PrefixClass int

const (
	PrefixNone PrefixClass = iota
	PrefixRestart
	PrefixAditivo
)

// ItemCode is the structured form of a planilha item code such as
// "1.2.3", "S1-4.1" or "AD-2.5-A". Path holds the dotted numeric
// segments; Suffix is the optional trailing letter.
type ItemCode struct {
	Prefix       PrefixClass `json:"prefix,omitempty"`
	PrefixNumber int         `json:"prefix_number,omitempty"`
	Path         []int       `json:"path"`
	Suffix       string      `json:"suffix,omitempty"`
}

// Depth returns the number of path segments.
func (c *ItemCode) Depth() int {
	if c == nil {
		return 0
	}
	return len(c.Path)
}

// First returns the depth-1 segment, or 0 when the path is empty.
func (c *ItemCode) First() int {
	if c == nil || len(c.Path) == 0 {
		return 0
	}
	return c.Path[0]
}

// String renders the canonical dotted form, including any section prefix
// and letter suffix.
func (c *ItemCode) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	switch c.Prefix {
	case PrefixRestart:
		fmt.Fprintf(&b, "S%d-", c.PrefixNumber)
	case PrefixAditivo:
		if c.PrefixNumber > 0 {
			fmt.Fprintf(&b, "AD%d-", c.PrefixNumber)
		} else {
			b.WriteString("AD-")
		}
	}
	for i, seg := range c.Path {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(seg))
	}
	if c.Suffix != "" {
		b.WriteByte('-')
		b.WriteString(c.Suffix)
	}
	return b.String()
}

// PathString renders only the dotted numeric path.
func (c *ItemCode) PathString() string {
	if c == nil {
		return ""
	}
	parts := make([]string, len(c.Path))
	for i, seg := range c.Path {
		parts[i] = strconv.Itoa(seg)
	}
	return strings.Join(parts, ".")
}

// Equal reports whether two codes are structurally identical.
func (c *ItemCode) Equal(other *ItemCode) bool {
	if c == nil || other == nil {
		return c == other
	}
	return CompareCodes(c, other) == 0
}

// IsChildOf reports whether c nests directly under parent: same section,
// parent's path plus exactly one more segment.
func (c *ItemCode) IsChildOf(parent *ItemCode) bool {
	if c == nil || parent == nil {
		return false
	}
	if c.Prefix != parent.Prefix || c.PrefixNumber != parent.PrefixNumber {
		return false
	}
	if len(c.Path) != len(parent.Path)+1 {
		return false
	}
	for i, seg := range parent.Path {
		if c.Path[i] != seg {
			return false
		}
	}
	return true
}

// suffixOrdinal maps the optional trailing letter to a sortable value.
// No suffix sorts before "A".
func (c *ItemCode) suffixOrdinal() int {
	if c == nil || c.Suffix == "" {
		return 0
	}
	return int(c.Suffix[0]-'A') + 1
}

// CompareCodes orders two optional item codes by the sort key
// (prefix class, prefix number, path segments, suffix). Missing codes
// sort after all present codes. The result is the single source of
// truth for display ordering and dedup pairing.
func CompareCodes(a, b *ItemCode) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if a.Prefix != b.Prefix {
		return int(a.Prefix) - int(b.Prefix)
	}
	if a.PrefixNumber != b.PrefixNumber {
		return a.PrefixNumber - b.PrefixNumber
	}
	n := min(len(a.Path), len(b.Path))
	for i := 0; i < n; i++ {
		if a.Path[i] != b.Path[i] {
			return a.Path[i] - b.Path[i]
		}
	}
	if len(a.Path) != len(b.Path) {
		return len(a.Path) - len(b.Path)
	}
	return a.suffixOrdinal() - b.suffixOrdinal()
}

// SourceStrategy identifies which extractor produced a record.
type SourceStrategy string

const (
	StrategyNativeText  SourceStrategy = "native_text"
	StrategyTableGrid   SourceStrategy = "table_grid"
	StrategyVisionTable SourceStrategy = "vision_table"
	StrategyGridOCR     SourceStrategy = "grid_ocr"
	StrategyOCRLayout   SourceStrategy = "ocr_layout"
)

// TableOrigin locates the planilha fragment a record came from.
type TableOrigin struct {
	Page     int `json:"page"`
	Planilha int `json:"planilha"`
}

// ServiceRecord is one reconstructed line item: code, description, unit
// and quantity, tagged with the strategy and fragment that produced it.
type ServiceRecord struct {
	Code                  *ItemCode      `json:"item_code,omitempty"`
	Description           string         `json:"description"`
	NormalizedDescription string         `json:"normalized_description"`
	Unit                  string         `json:"unit,omitempty"`
	CanonicalUnit         string         `json:"canonical_unit,omitempty"`
	Quantity              float64        `json:"quantity"`
	Strategy              SourceStrategy `json:"source_strategy,omitempty"`
	Origin                TableOrigin    `json:"origin"`
}

// CompareRecords orders records by item code, then normalized description
// as a tiebreaker so sorting stays deterministic for codeless rows.
func CompareRecords(a, b ServiceRecord) int {
	if c := CompareCodes(a.Code, b.Code); c != 0 {
		return c
	}
	return strings.Compare(a.NormalizedDescription, b.NormalizedDescription)
}
