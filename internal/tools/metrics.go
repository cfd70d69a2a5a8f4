package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PipelineMetricsInput defines the input schema for the metrics tool.
// The tool takes no arguments.
type PipelineMetricsInput struct{}

// NewPipelineMetricsHandler creates the pipeline_metrics tool handler.
// Returns the in-memory metrics snapshot: extraction timings, vision
// usage, strategy wins and match counts.
func NewPipelineMetricsHandler(deps *Dependencies) mcp.ToolHandlerFor[PipelineMetricsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PipelineMetricsInput) (
		*mcp.CallToolResult, any, error,
	) {
		if deps.Metrics == nil {
			return ErrorResult("No metrics collector configured", ""), nil, nil
		}
		return JSONResult(deps.Metrics.Snapshot()), nil, nil
	}
}
