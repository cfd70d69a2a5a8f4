package match

import (
	"slices"
	"strings"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/normalize"
)

const (
	defaultSuggestionLimit = 3
	minSimilarity          = 0.5
)

// Suggest returns near-miss records for a requirement: pool records
// whose normalized descriptions overlap the requirement's tokens but did
// not match exactly, including same-description records in a different
// unit. Advisory only.
func Suggest(req models.Requirement, pool []models.Certificate, limit int) []models.Suggestion {
	wantDesc := normalize.Description(req.Description)
	wantUnit := normalize.Unit(req.Unit)
	wantTokens := tokenSet(wantDesc)
	if len(wantTokens) == 0 {
		return nil
	}

	var out []models.Suggestion
	seen := make(map[string]bool)
	for i := range pool {
		ref := pool[i].Ref()
		for _, r := range pool[i].Records {
			if r.NormalizedDescription == wantDesc && normalize.UnitsEqual(r.CanonicalUnit, wantUnit) {
				continue
			}
			sim := jaccard(wantTokens, tokenSet(r.NormalizedDescription))
			if sim < minSimilarity {
				continue
			}
			k := ref + "\x00" + r.NormalizedDescription + "\x00" + r.CanonicalUnit
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, models.Suggestion{
				CertificateRef: ref,
				Description:    r.Description,
				Unit:           r.CanonicalUnit,
				Similarity:     sim,
			})
		}
	}

	slices.SortStableFunc(out, func(a, b models.Suggestion) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// tokenSet splits a normalized description into significant tokens,
// dropping short connectives (DE, DA, EM).
func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		if len(tok) < 3 {
			continue
		}
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
