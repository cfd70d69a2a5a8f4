package extract

import (
	"fmt"
	"math"
	"slices"

	"github.com/licitia/atesta/internal/models"
)

const qtyEpsilon = 1e-6

// canonicalize applies fragment merging, the three dedup passes and
// filtering, then orders records by their code sort key. Running it on
// its own output changes nothing.
func canonicalize(records []models.ServiceRecord, cfg Config, d *diagnostics) []models.ServiceRecord {
	if len(records) == 0 {
		return records
	}
	in := len(records)
	recs := slices.Clone(records)
	recs = mergeFragments(recs)
	recs = dedupNestedPairs(recs)
	recs = dedupRestartEchoes(recs)
	recs = dedupWithinFragments(recs)
	recs = filterRecords(recs, cfg)
	slices.SortStableFunc(recs, models.CompareRecords)
	if len(recs) != in {
		d.addf("canonicalization: %d rows in, %d rows out", in, len(recs))
	}
	return recs
}

// mergeFragments joins worksheet fragments split across pages or table
// detections: when a fragment's first code continues the previous
// fragment's last code, both get the same logical planilha id. The walk
// runs in (page, planilha) order so repeated runs assign the same ids.
func mergeFragments(records []models.ServiceRecord) []models.ServiceRecord {
	type fragKey struct{ page, planilha int }
	frags := make(map[fragKey][]int)
	for i, r := range records {
		k := fragKey{r.Origin.Page, r.Origin.Planilha}
		frags[k] = append(frags[k], i)
	}
	keys := make([]fragKey, 0, len(frags))
	for k := range frags {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b fragKey) int {
		if a.page != b.page {
			return a.page - b.page
		}
		return a.planilha - b.planilha
	})

	assign := make(map[fragKey]int, len(keys))
	logical := -1
	var prev []int
	for _, k := range keys {
		indices := frags[k]
		if prev != nil && continuesFragment(records, prev, indices) {
			assign[k] = logical
		} else {
			logical++
			assign[k] = logical
		}
		prev = indices
	}
	for _, k := range keys {
		for _, i := range frags[k] {
			records[i].Origin.Planilha = assign[k]
		}
	}
	return records
}

func continuesFragment(records []models.ServiceRecord, prev, next []int) bool {
	a := lastCoded(records, prev)
	b := firstCoded(records, next)
	if a == nil || b == nil {
		return false
	}
	if a.Prefix != b.Prefix || a.PrefixNumber != b.PrefixNumber {
		return false
	}
	if models.CompareCodes(a, b) >= 0 {
		return false
	}
	return b.First() <= a.First()+1
}

func firstCoded(records []models.ServiceRecord, indices []int) *models.ItemCode {
	for _, i := range indices {
		if c := records[i].Code; c != nil {
			return c
		}
	}
	return nil
}

func lastCoded(records []models.ServiceRecord, indices []int) *models.ItemCode {
	for i := len(indices) - 1; i >= 0; i-- {
		if c := records[indices[i]].Code; c != nil {
			return c
		}
	}
	return nil
}

// dedupNestedPairs drops X.Y.1 when X.Y exists with the same normalized
// description and quantity. Worksheet exporters often repeat a leaf as
// its own single child.
func dedupNestedPairs(records []models.ServiceRecord) []models.ServiceRecord {
	byKey := make(map[string][]float64)
	key := func(desc string, code *models.ItemCode) string {
		return desc + "\x00" + code.String()
	}
	for _, r := range records {
		if r.Code == nil {
			continue
		}
		k := key(r.NormalizedDescription, r.Code)
		byKey[k] = append(byKey[k], r.Quantity)
	}

	kept := records[:0]
	for _, r := range records {
		if r.Code != nil {
			if p := parentOf(r.Code); p != nil {
				if qtys, ok := byKey[key(r.NormalizedDescription, p)]; ok && containsQty(qtys, r.Quantity) {
					continue
				}
			}
		}
		kept = append(kept, r)
	}
	return kept
}

func parentOf(c *models.ItemCode) *models.ItemCode {
	if len(c.Path) < 2 {
		return nil
	}
	return &models.ItemCode{
		Prefix:       c.Prefix,
		PrefixNumber: c.PrefixNumber,
		Path:         c.Path[:len(c.Path)-1],
	}
}

func containsQty(qtys []float64, q float64) bool {
	for _, v := range qtys {
		if math.Abs(v-q) <= qtyEpsilon {
			return true
		}
	}
	return false
}

// dedupRestartEchoes drops prefixed records whose description, unit and
// quantity appear on an unprefixed record anywhere in the stream, or on
// a prefixed record already kept. Restart and aditivo sections repeat
// the base worksheet; only genuinely new rows survive. An echo extracted
// before its base row drops the same as one extracted after it.
func dedupRestartEchoes(records []models.ServiceRecord) []models.ServiceRecord {
	echoKey := func(r models.ServiceRecord) string {
		return fmt.Sprintf("%s\x00%s\x00%.6f", r.NormalizedDescription, r.CanonicalUnit, r.Quantity)
	}
	seen := make(map[string]bool)
	for _, r := range records {
		if r.Code == nil || r.Code.Prefix == models.PrefixNone {
			seen[echoKey(r)] = true
		}
	}
	kept := records[:0]
	for _, r := range records {
		if r.Code != nil && r.Code.Prefix != models.PrefixNone {
			k := echoKey(r)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		kept = append(kept, r)
	}
	return kept
}

// dedupWithinFragments keeps the most complete record when the same code
// repeats inside one logical fragment, as continuation rows and split
// cells produce.
func dedupWithinFragments(records []models.ServiceRecord) []models.ServiceRecord {
	best := make(map[string]int)
	drop := make([]bool, len(records))
	for i, r := range records {
		if r.Code == nil {
			continue
		}
		k := fmt.Sprintf("%d\x00%s", r.Origin.Planilha, r.Code.String())
		j, ok := best[k]
		if !ok {
			best[k] = i
			continue
		}
		if completeness(r) > completeness(records[j]) {
			drop[j] = true
			best[k] = i
		} else {
			drop[i] = true
		}
	}
	kept := records[:0]
	for i, r := range records {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

func completeness(r models.ServiceRecord) int {
	score := 0
	if r.NormalizedDescription != "" {
		score++
	}
	if r.CanonicalUnit != "" {
		score++
	}
	if r.Quantity > 0 {
		score++
	}
	return score
}

// filterRecords drops noise rows, rows without a positive quantity and,
// in strict mode, rows without a structurally valid code.
func filterRecords(records []models.ServiceRecord, cfg Config) []models.ServiceRecord {
	kept := records[:0]
	for _, r := range records {
		if r.NormalizedDescription == "" || isNoiseLine(r.Description) {
			continue
		}
		if r.Quantity <= 0 {
			continue
		}
		if cfg.StrictCodes && r.Code == nil {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
