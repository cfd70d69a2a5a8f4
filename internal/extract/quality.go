package extract

import "github.com/licitia/atesta/internal/models"

// QualityBreakdown is the composite quality score of one extraction
// attempt together with its components, each in [0, 1].
type QualityBreakdown struct {
	UnitQuantity    float64
	ValidCode       float64
	RowPlausibility float64
	Score           float64
}

// scoreQuality rates an extraction attempt. An empty attempt scores
// zero across the board.
func scoreQuality(records []models.ServiceRecord, pageCount int, cfg Config) QualityBreakdown {
	if len(records) == 0 {
		return QualityBreakdown{}
	}
	var withUnitQty, withCode int
	for _, r := range records {
		if r.CanonicalUnit != "" && r.Quantity > 0 {
			withUnitQty++
		}
		if r.Code != nil {
			withCode++
		}
	}
	n := float64(len(records))
	b := QualityBreakdown{
		UnitQuantity:    float64(withUnitQty) / n,
		ValidCode:       float64(withCode) / n,
		RowPlausibility: rowPlausibility(len(records), pageCount, cfg),
	}
	w := cfg.Weights
	total := w.UnitQuantity + w.ValidCode + w.RowPlausibility
	if total <= 0 {
		total = 1
	}
	b.Score = (b.UnitQuantity*w.UnitQuantity +
		b.ValidCode*w.ValidCode +
		b.RowPlausibility*w.RowPlausibility) / total
	return b
}

// rowPlausibility scores the record count against the expected band for
// the document's page count: 1.0 inside the band, linear falloff toward
// zero outside it.
func rowPlausibility(rows, pages int, cfg Config) float64 {
	if rows == 0 {
		return 0
	}
	if pages <= 0 {
		pages = 1
	}
	lo := cfg.MinRowsPerPage * pages
	hi := cfg.MaxRowsPerPage * pages
	switch {
	case lo > 0 && rows < lo:
		return float64(rows) / float64(lo)
	case hi > 0 && rows > hi:
		return float64(hi) / float64(rows)
	default:
		return 1
	}
}
