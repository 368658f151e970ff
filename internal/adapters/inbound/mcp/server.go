package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/noxaudit/noxaudit/internal/application"
)

// Services are the application services the MCP surface exposes.
type Services struct {
	Audit      *application.AuditService
	Scorecard  *application.ScorecardService
	Decisions  *application.DecisionService
	RunsDir    string
	LedgerPath string
}

// NewNoxauditMCPServer creates an MCP server with every noxaudit tool and
// resource registered.
func NewNoxauditMCPServer(svc Services, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"noxaudit",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, svc)
	registerResources(s, svc)

	return s
}
