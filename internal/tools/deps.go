// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/licitia/atesta/internal/db"
	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/service"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	DB         *db.Client
	Extraction *service.ExtractionService
	Match      *service.MatchService
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}
