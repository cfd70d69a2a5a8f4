package tools

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/licitia/atesta/internal/service"
)

// ExtractDocumentInput defines the input schema for the extract tool.
type ExtractDocumentInput struct {
	Path   string `json:"path" jsonschema:"required,Server-local path to a document source JSON file"`
	Issuer string `json:"issuer,omitempty" jsonschema:"Issuing entity stamped on the certificate"`
}

// ExtractDocumentResult summarizes one extraction for the caller.
type ExtractDocumentResult struct {
	Title          string   `json:"title"`
	Records        int      `json:"records"`
	Quality        float64  `json:"quality"`
	Strategy       string   `json:"strategy"`
	Stored         bool     `json:"stored"`
	CertificateRef string   `json:"certificate_ref,omitempty"`
	Diagnostics    []string `json:"diagnostics,omitempty"`
}

// NewExtractDocumentHandler creates the extract_document tool handler.
// Runs the full cascade on one source file and persists the certificate
// when a store is configured.
func NewExtractDocumentHandler(deps *Dependencies) mcp.ToolHandlerFor[ExtractDocumentInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ExtractDocumentInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Path == "" {
			return ErrorResult("Path cannot be empty", "Provide a document source JSON path"), nil, nil
		}

		outcome, err := deps.Extraction.ExtractFile(ctx, input.Path, service.ExtractOptions{Issuer: input.Issuer})
		if err != nil {
			deps.Logger.Error("extraction failed", "path", input.Path, "error", err)
			return ErrorResult("Extraction failed: "+err.Error(), "Check the source file"), nil, nil
		}

		result := ExtractDocumentResult{
			Title:       strings.TrimSuffix(filepath.Base(input.Path), filepath.Ext(input.Path)),
			Records:     len(outcome.Result.Records),
			Quality:     outcome.Result.Quality,
			Strategy:    string(outcome.Result.Strategy),
			Diagnostics: outcome.Result.Diagnostics,
		}
		if outcome.Certificate != nil {
			result.Title = outcome.Certificate.Title
			result.Stored = true
			result.CertificateRef = outcome.Certificate.Ref()
		}

		deps.Logger.Info("extract tool completed", "path", input.Path, "records", result.Records, "strategy", result.Strategy)
		return JSONResult(result), nil, nil
	}
}
