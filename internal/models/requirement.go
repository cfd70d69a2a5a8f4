package models

// Requirement is one technical-capability line item from an edital.
// Supplied externally (parsed bid announcement or manual entry) and
// read-only to the pipeline.
type Requirement struct {
	Description     string  `json:"description" yaml:"description"`
	QuantityMinimum float64 `json:"quantity_minimum" yaml:"quantity_minimum"`
	Unit            string  `json:"unit" yaml:"unit"`
	AllowSum        bool    `json:"allow_sum" yaml:"allow_sum"`
}
