package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mlavrik/sigscout/internal/orchestrator"
	"github.com/mlavrik/sigscout/internal/storage"
)

// NewMCPServer exposes the scanner and the saved-signals archive over MCP,
// so other agents can run scans and browse the log without the widget.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"sigscout",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sigscout — horizon-scanning relay: scan for emerging signals and browse the saved archive."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("scan_signals",
			mcp.WithDescription("Run one signal scan against the agent and return the rendered card or text reply as JSON."),
			mcp.WithString("query", mcp.Description("Scan query, e.g. 'Find top signals in biotech'"), mcp.Required()),
			mcp.WithString("time_filter", mcp.Description("Time horizon constraint (default 'Past Year')")),
			mcp.WithBoolean("tech_mode", mcp.Description("Restrict the scan to technical signals")),
		),
		mcpScanSignals(deps),
	)

	s.AddTool(
		mcp.NewTool("list_saved_signals",
			mcp.WithDescription("List saved signals, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListSavedSignals(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"signals://log",
			"Signal Log",
			mcp.WithResourceDescription("The append-only CSV log of visualized signals"),
			mcp.WithMIMEType("text/csv"),
		),
		mcpResourceLog(deps),
	)

	return s
}

func mcpScanSignals(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		chatReq := orchestrator.ChatRequest{
			Text:       query,
			TimeFilter: req.GetString("time_filter", ""),
			TechMode:   req.GetBool("tech_mode", false),
		}

		res, err := deps.Scanner.Scan(ctx, chatReq)
		if err != nil {
			return mcpError(fmt.Sprintf("scan failed: %v", err)), nil
		}

		var payload any = res.Reply
		if res.Card != nil {
			payload = res.Card
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListSavedSignals(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		signals, err := deps.Archive.ListSignals(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list signals: %v", err)), nil
		}
		if signals == nil {
			signals = []storage.SavedSignal{}
		}

		b, err := json.Marshal(signals)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal signals: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceLog(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := deps.Log.Export()
		if errors.Is(err, storage.ErrNotFound) {
			data = nil
		} else if err != nil {
			return nil, fmt.Errorf("exporting signal log: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/csv",
				Text:     string(data),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
