package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/licitia/atesta/internal/models"
)

// maxCodeDepth bounds the path length; deeper "codes" are OCR garbage.
const maxCodeDepth = 8

// codePattern accepts a full item code: optional S<n>-/AD<n>- section
// prefix, dotted or spaced numeric path, optional letter suffix.
var codePattern = regexp.MustCompile(`(?i)^(?:(S\d+)-|(AD\d*)-)?(\d{1,4}(?:[.\s]+\d{1,4})*)\.?(?:\s*-\s*([A-Za-z]))?$`)

// linePattern matches a dotted code at the start of a text line and
// captures the rest, which must open with a letter. Spaced paths are
// not accepted here: in free text "1 2" is indistinguishable from a
// code followed by a description.
var linePattern = regexp.MustCompile(`(?i)^\s*((?:S\d+-|AD\d*-)?\d{1,4}(?:\.\d{1,4})*(?:-[A-Za-z])?)[\s.:–-]+(\pL.*)$`)

// ParseCode parses a string holding exactly one item code ("1.2.3",
// "1 2 3", "S1-4.1", "AD-2-A"). Returns false when the string is not a
// structurally valid code.
func ParseCode(raw string) (*models.ItemCode, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	m := codePattern.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}

	code := &models.ItemCode{}
	switch {
	case m[1] != "":
		n, err := strconv.Atoi(m[1][1:])
		if err != nil {
			return nil, false
		}
		code.Prefix = models.PrefixRestart
		code.PrefixNumber = n
	case m[2] != "":
		code.Prefix = models.PrefixAditivo
		if digits := m[2][2:]; digits != "" {
			n, err := strconv.Atoi(digits)
			if err != nil {
				return nil, false
			}
			code.PrefixNumber = n
		}
	}

	segs := strings.FieldsFunc(m[3], func(r rune) bool {
		return r == '.' || r == ' ' || r == '\t'
	})
	if len(segs) == 0 || len(segs) > maxCodeDepth {
		return nil, false
	}
	code.Path = make([]int, len(segs))
	for i, seg := range segs {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return nil, false
		}
		code.Path[i] = n
	}

	if m[4] != "" {
		code.Suffix = strings.ToUpper(m[4])
	}
	return code, true
}

// LeadingCode splits a text line into an item code and the remainder.
// Only dotted paths are recognized at line starts.
func LeadingCode(line string) (*models.ItemCode, string, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, "", false
	}
	code, ok := ParseCode(m[1])
	if !ok {
		return nil, "", false
	}
	return code, strings.TrimSpace(m[2]), true
}
