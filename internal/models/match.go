package models

// MatchStatus is the coverage decision for one requirement.
type MatchStatus string

const (
	StatusAtende    MatchStatus = "atende"
	StatusParcial   MatchStatus = "parcial"
	StatusNaoAtende MatchStatus = "nao_atende"
)

// CertificateUse records how one certificate contributes to a match:
// which records qualified and how much quantity they supply.
type CertificateUse struct {
	CertificateRef  string          `json:"certificate_ref"`
	MatchedRecords  []ServiceRecord `json:"matched_records"`
	QuantityUsed    float64         `json:"quantity_used"`
	CoveragePercent float64         `json:"coverage_percent"`
}

// Suggestion is an advisory near-miss: a record description that almost
// matches the requirement. Never influences status or coverage.
type Suggestion struct {
	CertificateRef string  `json:"certificate_ref"`
	Description    string  `json:"description"`
	Unit           string  `json:"unit,omitempty"`
	Similarity     float64 `json:"similarity"`
}

// MatchResult is the coverage decision for one requirement against a
// certificate pool. PercentualTotal is uncapped internally; callers cap
// it at display time. Computed fresh per call and never persisted here.
type MatchResult struct {
	Requirement     Requirement      `json:"requirement"`
	Status          MatchStatus      `json:"status"`
	PercentualTotal float64          `json:"percentual_total"`
	SumQuantities   float64          `json:"sum_quantities"`
	Certificates    []CertificateUse `json:"certificates_recommended"`
	Suggestions     []Suggestion     `json:"suggestions,omitempty"`
}
