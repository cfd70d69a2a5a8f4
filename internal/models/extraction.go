package models

// ExtractionResult is the outcome of one extractor invocation or of the
// full cascade: the records, a composite quality score in [0,1], the
// strategy that produced them, and advisory diagnostics. Immutable once
// produced; the orchestrator may discard it.
type ExtractionResult struct {
	Records     []ServiceRecord `json:"records"`
	Quality     float64         `json:"quality"`
	Strategy    SourceStrategy  `json:"strategy,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
}

// Empty reports whether the result carries no records.
func (r ExtractionResult) Empty() bool {
	return len(r.Records) == 0
}

// VisionRow is one table row as returned by a vision model, fields still
// raw. The JSON tags mirror the Portuguese column names the prompts ask
// for.
type VisionRow struct {
	Item       string `json:"item"`
	Descricao  string `json:"descricao"`
	Unidade    string `json:"unidade"`
	Quantidade string `json:"quantidade"`
}
