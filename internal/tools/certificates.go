package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/licitia/atesta/internal/models"
)

// ListCertificatesInput defines the input schema for the list tool.
type ListCertificatesInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"Case-insensitive title substring filter"`
}

// certificateSummary is one row of the list output.
type certificateSummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Issuer   string  `json:"issuer,omitempty"`
	Records  int     `json:"records"`
	Quality  float64 `json:"quality"`
	Strategy string  `json:"strategy,omitempty"`
}

// ListCertificatesResult is the response from the list tool.
type ListCertificatesResult struct {
	Certificates []certificateSummary `json:"certificates"`
	Count        int                  `json:"count"`
}

// NewListCertificatesHandler creates the list_certificates tool handler.
func NewListCertificatesHandler(deps *Dependencies) mcp.ToolHandlerFor[ListCertificatesInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListCertificatesInput) (
		*mcp.CallToolResult, any, error,
	) {
		if deps.DB == nil {
			return ErrorResult("No certificate store configured", "Start the server with a database"), nil, nil
		}

		certs, err := deps.DB.ListCertificates(ctx, input.Filter)
		if err != nil {
			deps.Logger.Error("list certificates failed", "error", err)
			return ErrorResult("Failed to list certificates", "Database may be unavailable"), nil, nil
		}

		summaries := make([]certificateSummary, 0, len(certs))
		for i := range certs {
			c := &certs[i]
			id, _ := models.RecordIDString(c.ID)
			summaries = append(summaries, certificateSummary{
				ID:       id,
				Title:    c.Title,
				Issuer:   c.Issuer,
				Records:  len(c.Records),
				Quality:  c.Quality,
				Strategy: string(c.Strategy),
			})
		}

		deps.Logger.Info("list certificates completed", "count", len(summaries), "filter", input.Filter)
		return JSONResult(ListCertificatesResult{Certificates: summaries, Count: len(summaries)}), nil, nil
	}
}

// GetCertificateInput defines the input schema for the get tool.
type GetCertificateInput struct {
	ID string `json:"id" jsonschema:"required,Certificate id (slug from list_certificates)"`
}

// NewGetCertificateHandler creates the get_certificate tool handler.
// Returns the full record list of one certificate.
func NewGetCertificateHandler(deps *Dependencies) mcp.ToolHandlerFor[GetCertificateInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetCertificateInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.ID == "" {
			return ErrorResult("ID cannot be empty", "Provide a certificate id"), nil, nil
		}
		if deps.DB == nil {
			return ErrorResult("No certificate store configured", "Start the server with a database"), nil, nil
		}

		cert, err := deps.DB.GetCertificate(ctx, input.ID)
		if err != nil {
			deps.Logger.Error("get certificate failed", "id", input.ID, "error", err)
			return ErrorResult("Failed to load certificate", "Database may be unavailable"), nil, nil
		}
		if cert == nil {
			return ErrorResult("Certificate not found: "+input.ID, "Use list_certificates to see available ids"), nil, nil
		}

		return JSONResult(cert), nil, nil
	}
}

// ForgetCertificateInput defines the input schema for the forget tool.
type ForgetCertificateInput struct {
	IDs []string `json:"ids" jsonschema:"required,Certificate ids to delete"`
}

// ForgetCertificateResult is the response from the forget tool.
type ForgetCertificateResult struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

// NewForgetCertificateHandler creates the forget_certificate tool handler.
// Deletes certificates by id. Idempotent - unknown ids silently succeed.
func NewForgetCertificateHandler(deps *Dependencies) mcp.ToolHandlerFor[ForgetCertificateInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ForgetCertificateInput) (
		*mcp.CallToolResult, any, error,
	) {
		if len(input.IDs) == 0 {
			return ErrorResult("At least one ID is required", "Provide ids array with certificate ids to delete"), nil, nil
		}
		if deps.DB == nil {
			return ErrorResult("No certificate store configured", "Start the server with a database"), nil, nil
		}

		deleted, err := deps.DB.DeleteCertificates(ctx, input.IDs...)
		if err != nil {
			deps.Logger.Error("delete certificates failed", "ids", input.IDs, "error", err)
			return ErrorResult("Failed to delete certificates", "Database may be unavailable"), nil, nil
		}

		result := ForgetCertificateResult{
			Deleted: deleted,
			Message: fmt.Sprintf("Deleted %d certificates", deleted),
		}

		deps.Logger.Info("forget completed", "deleted", deleted, "requested", len(input.IDs))
		return JSONResult(result), nil, nil
	}
}
