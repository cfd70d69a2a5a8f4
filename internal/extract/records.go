package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/normalize"
)

// diagnostics accumulates human-readable notes about what the pipeline
// did and why. Notes surface on the extraction result; they are never
// fatal.
type diagnostics struct {
	notes []string
}

func (d *diagnostics) addf(format string, args ...any) {
	d.notes = append(d.notes, fmt.Sprintf(format, args...))
}

// stream collects records in reading order together with the positions
// of aditivo marker lines encountered between them. Section tagging runs
// on the finished stream.
type stream struct {
	records []models.ServiceRecord
	marks   []int
	d       *diagnostics
}

func (s *stream) add(rec models.ServiceRecord) {
	s.records = append(s.records, rec)
}

// noteAditivo marks an aditivo block opening at the current stream
// position.
func (s *stream) noteAditivo() {
	pos := len(s.records)
	if n := len(s.marks); n > 0 && s.marks[n-1] == pos {
		return
	}
	s.marks = append(s.marks, pos)
}

// isAditivoMarker reports whether a line that produced no record reads
// like an aditivo heading. Coded rows never reach this check, which
// keeps admixture services ("ADITIVO PLASTIFICANTE...") out.
func isAditivoMarker(s string) bool {
	fields := strings.Fields(normalize.Text(s))
	if len(fields) == 0 || len(fields) > 8 {
		return false
	}
	for _, tok := range fields {
		if tok == "ADITIVO" || tok == "ADITIVOS" {
			return true
		}
	}
	return false
}

// rawRow is one positional row as an extractor saw it, before
// normalization.
type rawRow struct {
	code string
	desc string
	unit string
	qty  string
}

// buildRecord normalizes one raw row into a service record. Rows whose
// quantity cell is present but unparsable are dropped with a diagnostic;
// an empty quantity cell yields quantity zero and is left for the
// filtering pass to judge. Returns false when the row carries nothing
// usable.
func buildRecord(row rawRow, strategy models.SourceStrategy, origin models.TableOrigin, d *diagnostics) (models.ServiceRecord, bool) {
	desc := strings.TrimSpace(row.desc)
	code, _ := normalize.ParseCode(row.code)
	if code == nil && desc != "" {
		if c, rest, ok := normalize.LeadingCode(desc); ok {
			code, desc = c, rest
		}
	}

	var qty float64
	if q := strings.TrimSpace(row.qty); q != "" {
		parsed, err := normalize.ParseQuantity(q)
		if err != nil {
			switch {
			case errors.Is(err, normalize.ErrNegative):
				d.addf("%s: page %d: dropped row %q: negative quantity %q", strategy, origin.Page, clip(desc), q)
			default:
				d.addf("%s: page %d: dropped row %q: unparsable quantity %q", strategy, origin.Page, clip(desc), q)
			}
			return models.ServiceRecord{}, false
		}
		qty = parsed
	}

	if desc == "" && code == nil {
		return models.ServiceRecord{}, false
	}

	return models.ServiceRecord{
		Code:                  code,
		Description:           desc,
		NormalizedDescription: normalize.Description(desc),
		Unit:                  strings.TrimSpace(row.unit),
		CanonicalUnit:         normalize.Unit(row.unit),
		Quantity:              qty,
		Strategy:              strategy,
		Origin:                origin,
	}, true
}

// clip shortens a string for diagnostics.
func clip(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// recordKey identifies a record for cross-strategy deduplication when
// partial results merge.
func recordKey(r models.ServiceRecord) string {
	code := ""
	if r.Code != nil {
		code = r.Code.String()
	}
	return fmt.Sprintf("%s|%s|%s|%.6f", code, r.NormalizedDescription, r.CanonicalUnit, r.Quantity)
}
