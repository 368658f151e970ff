package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/noxaudit/noxaudit/internal/application"
	"github.com/noxaudit/noxaudit/internal/domain/focus"
)

// registerTools registers all noxaudit MCP tools on the given server.
func registerTools(s *server.MCPServer, svc Services) {
	s.AddTool(
		mcplib.NewTool("noxaudit_pending_status",
			mcplib.WithDescription("Returns the pending batch submission, optionally with the live state of each batch"),
			mcplib.WithBoolean("check", mcplib.Description("Poll each provider for the current batch state")),
		),
		handlePendingStatus(svc),
	)

	s.AddTool(
		mcplib.NewTool("noxaudit_retrieve",
			mcplib.WithDescription("Collects every ended batch: filters findings against decisions, saves reports and removes them from the pending ledger"),
		),
		handleRetrieve(svc),
	)

	s.AddTool(
		mcplib.NewTool("noxaudit_scorecard",
			mcplib.WithDescription("Returns per-(provider, model, repo, focus) quality metrics computed from recorded runs"),
			mcplib.WithString("results_dir", mcplib.Description("Directory of run records (default from config)")),
		),
		handleScorecard(svc),
	)

	s.AddTool(
		mcplib.NewTool("noxaudit_focus_areas",
			mcplib.WithDescription("Lists the focus areas with their file patterns"),
		),
		handleFocusAreas(),
	)

	s.AddTool(
		mcplib.NewTool("noxaudit_list_decisions",
			mcplib.WithDescription("Returns every recorded decision on findings"),
		),
		handleListDecisions(svc),
	)

	s.AddTool(
		mcplib.NewTool("noxaudit_record_decision",
			mcplib.WithDescription("Records a decision so future audits stop reporting a finding"),
			mcplib.WithString("finding_id", mcplib.Required(), mcplib.Description("12-character finding id from a report")),
			mcplib.WithString("type", mcplib.Description("accept, ignore or expire (default: accept)")),
			mcplib.WithString("file", mcplib.Description("File the finding was reported in; empty matches any file")),
			mcplib.WithString("reason", mcplib.Description("Why the finding needs no action")),
			mcplib.WithString("by", mcplib.Description("Who decided")),
		),
		handleRecordDecision(svc),
	)
}

type pendingStatus struct {
	Pending  any `json:"pending"`
	Statuses any `json:"statuses,omitempty"`
}

func handlePendingStatus(svc Services) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		check := request.GetBool("check", false)
		set, statuses, err := svc.Audit.Status(ctx, svc.LedgerPath, check)
		if err != nil {
			return errorResult(fmt.Sprintf("status failed: %v", err)), nil
		}
		if set.IsEmpty() {
			return textResult("No pending batches."), nil
		}
		return jsonResult(pendingStatus{Pending: set, Statuses: statuses})
	}
}

type retrieveResult struct {
	Results  any      `json:"results"`
	Failures []string `json:"failures,omitempty"`
	Pending  any      `json:"pending,omitempty"`
}

func handleRetrieve(svc Services) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		report, err := svc.Audit.Retrieve(ctx, svc.LedgerPath)
		if err != nil {
			return errorResult(fmt.Sprintf("retrieve failed: %v", err)), nil
		}
		if len(report.Results) == 0 && len(report.Failures) == 0 {
			return textResult("No pending batches."), nil
		}
		out := retrieveResult{Results: report.Results}
		for _, f := range report.Failures {
			out.Failures = append(out.Failures, f.Error())
		}
		if report.Pending != nil {
			out.Pending = report.Pending
		}
		return jsonResult(out)
	}
}

func handleScorecard(svc Services) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		dir := request.GetString("results_dir", svc.RunsDir)
		sc, err := svc.Scorecard.Build(dir)
		if err != nil {
			return errorResult(fmt.Sprintf("scorecard failed: %v", err)), nil
		}
		return jsonResult(map[string]any{
			"run_count":             sc.RunCount,
			"groups":                sc.Groups,
			"models":                sc.Models,
			"unique_findings_count": sc.UniqueCounts(),
		})
	}
}

type focusAreaInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Patterns    []string `json:"patterns"`
}

func focusAreas() []focusAreaInfo {
	var out []focusAreaInfo
	for _, a := range focus.All() {
		out = append(out, focusAreaInfo{Name: a.Name(), Description: a.Description(), Patterns: a.Patterns()})
	}
	return out
}

func handleFocusAreas() server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return jsonResult(focusAreas())
	}
}

func handleListDecisions(svc Services) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		all, err := svc.Decisions.List()
		if err != nil {
			return errorResult(fmt.Sprintf("loading decisions failed: %v", err)), nil
		}
		return jsonResult(all)
	}
}

func handleRecordDecision(svc Services) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		id, err := request.RequireString("finding_id")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		d, err := svc.Decisions.Decide(application.DecisionInput{
			FindingID: id,
			File:      request.GetString("file", ""),
			Type:      request.GetString("type", "accept"),
			Reason:    request.GetString("reason", ""),
			By:        request.GetString("by", "mcp"),
		})
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(d)
	}
}

// jsonResult marshals v into a text content result.
func jsonResult(v interface{}) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// textResult returns a plain text content result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
	}
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
