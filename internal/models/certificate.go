package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Certificate is one atestado: the canonical, ordered, deduplicated
// record list produced by the pipeline for one document, plus metadata.
// Persisted whole; a pipeline re-run replaces the entire record list,
// never patches it field-by-field.
type Certificate struct {
	ID          surrealmodels.RecordID `json:"id"`
	Title       string                 `json:"title"`
	Issuer      string                 `json:"issuer,omitempty"`
	SourcePath  string                 `json:"source_path,omitempty"`
	Records     []ServiceRecord        `json:"records"`
	Quality     float64                `json:"quality"`
	Strategy    SourceStrategy         `json:"strategy,omitempty"`
	Diagnostics []string               `json:"diagnostics,omitempty"`
	Created     time.Time              `json:"created,omitempty"`
	Updated     time.Time              `json:"updated,omitempty"`
}

// CertificateInput is the input structure for creating or replacing a
// certificate.
type CertificateInput struct {
	Title       string          `json:"title"`
	Issuer      string          `json:"issuer,omitempty"`
	SourcePath  string          `json:"source_path,omitempty"`
	Records     []ServiceRecord `json:"records"`
	Quality     float64         `json:"quality"`
	Strategy    SourceStrategy  `json:"strategy,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
}

// Ref returns a stable reference for match results: the record ID when
// the certificate is persisted, the title otherwise.
func (c *Certificate) Ref() string {
	if s, err := RecordIDString(c.ID); err == nil && s != "" {
		return s
	}
	return c.Title
}
