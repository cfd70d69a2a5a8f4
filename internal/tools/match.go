package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/licitia/atesta/internal/models"
)

// MatchRequirementInput defines the input schema for the match tool.
type MatchRequirementInput struct {
	Description     string  `json:"description" jsonschema:"required,Service description from the edital requirement"`
	Unit            string  `json:"unit,omitempty" jsonschema:"Unit of measure (m3, m2, un, ...)"`
	QuantityMinimum float64 `json:"quantity_minimum,omitempty" jsonschema:"Minimum quantity demanded; zero means presence-only"`
	AllowSum        bool    `json:"allow_sum,omitempty" jsonschema:"Whether quantities may accumulate across certificates"`
}

// NewMatchRequirementHandler creates the match_requirement tool handler.
// Evaluates one requirement against the stored certificate pool.
func NewMatchRequirementHandler(deps *Dependencies) mcp.ToolHandlerFor[MatchRequirementInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input MatchRequirementInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Description == "" {
			return ErrorResult("Description cannot be empty", "Provide the requirement text"), nil, nil
		}

		requirement := models.Requirement{
			Description:     input.Description,
			Unit:            input.Unit,
			QuantityMinimum: input.QuantityMinimum,
			AllowSum:        input.AllowSum,
		}

		result, err := deps.Match.MatchRequirement(ctx, requirement, nil)
		if err != nil {
			deps.Logger.Error("match failed", "description", input.Description, "error", err)
			return ErrorResult("Match failed: "+err.Error(), "Certificate store may be unavailable"), nil, nil
		}

		deps.Logger.Info("match tool completed", "description", input.Description, "status", result.Status)
		return JSONResult(result), nil, nil
	}
}
