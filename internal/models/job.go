package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ExtractionJob represents a persisted async extraction job.
type ExtractionJob struct {
	ID          surrealmodels.RecordID `json:"id"`
	JobType     string                 `json:"job_type"`
	Status      string                 `json:"status"`
	Name        *string                `json:"name,omitempty"` // User-provided name for rerunning
	DirPath     string                 `json:"dir_path"`
	Sources     []string               `json:"sources"`
	Options     map[string]any         `json:"options,omitempty"`
	Total       int                    `json:"total"`
	Progress    int                    `json:"progress"`
	Result      map[string]any         `json:"result,omitempty"`
	Error       *string                `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}
