// Package match implements the requirement matching engine: exact
// matching on normalized description and canonical unit, per-certificate
// quantity sums, and the greedy allocation for sum-matching. Everything
// here is deterministic and stateless; calls are safe to run
// concurrently over independent pools.
package match

import (
	"slices"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/normalize"
)

// Match evaluates one requirement against a certificate pool.
//
// With allow_sum disabled the single certificate with the largest
// matching sum is recommended. With allow_sum enabled certificates are
// taken in descending order of their matching sums until the running
// total reaches the minimum, including the certificate that crosses it;
// ties keep pool order. Near-miss suggestions are attached whenever the
// requirement is not fully met; they never affect status or coverage.
func Match(req models.Requirement, pool []models.Certificate) models.MatchResult {
	wantDesc := normalize.Description(req.Description)
	wantUnit := normalize.Unit(req.Unit)

	type candidate struct {
		idx     int
		records []models.ServiceRecord
		sum     float64
	}
	var candidates []candidate
	for i := range pool {
		var matched []models.ServiceRecord
		sum := 0.0
		for _, r := range pool[i].Records {
			if r.NormalizedDescription != wantDesc {
				continue
			}
			if !normalize.UnitsEqual(r.CanonicalUnit, wantUnit) {
				continue
			}
			matched = append(matched, r)
			sum += r.Quantity
		}
		if sum > 0 {
			candidates = append(candidates, candidate{idx: i, records: matched, sum: sum})
		}
	}

	result := models.MatchResult{Requirement: req, Status: models.StatusNaoAtende}
	if len(candidates) == 0 {
		result.Suggestions = Suggest(req, pool, defaultSuggestionLimit)
		return result
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		switch {
		case a.sum > b.sum:
			return -1
		case a.sum < b.sum:
			return 1
		default:
			return 0
		}
	})

	var chosen []candidate
	if req.AllowSum {
		total := 0.0
		for _, c := range candidates {
			chosen = append(chosen, c)
			total += c.sum
			if req.QuantityMinimum <= 0 || total >= req.QuantityMinimum {
				break
			}
		}
	} else {
		chosen = candidates[:1]
	}

	for _, c := range chosen {
		result.SumQuantities += c.sum
	}
	result.PercentualTotal = percentual(result.SumQuantities, req.QuantityMinimum)
	switch {
	case result.PercentualTotal >= 100:
		result.Status = models.StatusAtende
	case result.PercentualTotal > 0:
		result.Status = models.StatusParcial
	}

	for _, c := range chosen {
		result.Certificates = append(result.Certificates, models.CertificateUse{
			CertificateRef:  pool[c.idx].Ref(),
			MatchedRecords:  c.records,
			QuantityUsed:    c.sum,
			CoveragePercent: percentual(c.sum, req.QuantityMinimum),
		})
	}
	if result.Status != models.StatusAtende {
		result.Suggestions = Suggest(req, pool, defaultSuggestionLimit)
	}
	return result
}

// MatchAll evaluates requirements independently against the same pool.
func MatchAll(reqs []models.Requirement, pool []models.Certificate) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, Match(req, pool))
	}
	return results
}

// percentual is the coverage percentage. A non-positive minimum is
// satisfied by any positive sum.
func percentual(sum, minimum float64) float64 {
	if minimum > 0 {
		return 100 * sum / minimum
	}
	if sum > 0 {
		return 100
	}
	return 0
}
