package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/noxaudit/noxaudit/internal/domain/focus"
)

// registerResources registers all noxaudit MCP resources on the given server.
func registerResources(s *server.MCPServer, svc Services) {
	s.AddResource(
		mcplib.NewResource(
			"noxaudit://pending",
			"Pending Batches",
			mcplib.WithResourceDescription("Batches submitted but not retrieved yet"),
			mcplib.WithMIMEType("application/json"),
		),
		handlePendingResource(svc),
	)

	s.AddResource(
		mcplib.NewResource(
			"noxaudit://focus-areas",
			"Focus Areas",
			mcplib.WithResourceDescription("Focus areas with their file patterns"),
			mcplib.WithMIMEType("application/json"),
		),
		handleFocusAreasResource(),
	)

	s.AddResource(
		mcplib.NewResource(
			"noxaudit://decisions",
			"Decisions",
			mcplib.WithResourceDescription("Recorded decisions on findings"),
			mcplib.WithMIMEType("application/json"),
		),
		handleDecisionsResource(svc),
	)

	s.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"noxaudit://focus/{name}",
			"Focus Area",
			mcplib.WithTemplateDescription("Patterns and audit prompt of one focus area"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		handleFocusResource(),
	)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func handlePendingResource(svc Services) server.ResourceHandlerFunc {
	return func(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		set, _, err := svc.Audit.Status(ctx, svc.LedgerPath, false)
		if err != nil {
			return nil, fmt.Errorf("loading pending batches: %w", err)
		}
		return jsonContents("noxaudit://pending", set)
	}
}

func handleFocusAreasResource() server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		return jsonContents("noxaudit://focus-areas", focusAreas())
	}
}

func handleDecisionsResource(svc Services) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		all, err := svc.Decisions.List()
		if err != nil {
			return nil, fmt.Errorf("loading decisions: %w", err)
		}
		return jsonContents("noxaudit://decisions", all)
	}
}

type focusDetail struct {
	focusAreaInfo
	Prompt string `json:"prompt"`
}

func handleFocusResource() server.ResourceTemplateHandlerFunc {
	return func(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		name := templateArg(request.Params.Arguments, "name")
		if name == "" {
			return nil, fmt.Errorf("focus name is required")
		}
		area, ok := focus.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown focus area %q (available: %v)", name, focus.Names())
		}
		return jsonContents(request.Params.URI, focusDetail{
			focusAreaInfo: focusAreaInfo{Name: area.Name(), Description: area.Description(), Patterns: area.Patterns()},
			Prompt:        area.Prompt(),
		})
	}
}

// templateArg reads a URI template variable, which the server may hand over
// as a string or a single-element slice.
func templateArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
