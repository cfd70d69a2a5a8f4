package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_document",
		Description: "Extract service records from a document source JSON file and store the resulting certificate",
	}, NewExtractDocumentHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "match_requirement",
		Description: "Evaluate an edital requirement against the stored certificate pool",
	}, NewMatchRequirementHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_certificates",
		Description: "List stored certificates with an optional title filter",
	}, NewListCertificatesHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_certificate",
		Description: "Retrieve one certificate with its full service record list",
	}, NewGetCertificateHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "forget_certificate",
		Description: "Delete certificates from the store by id",
	}, NewForgetCertificateHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pipeline_metrics",
		Description: "Runtime metrics snapshot: extraction timings, vision usage, strategy wins",
	}, NewPipelineMetricsHandler(deps))
}
