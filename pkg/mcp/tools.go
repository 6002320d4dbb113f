package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/actionwait/internal/store"
	"github.com/rendis/actionwait/pkg/schema"
)

// handleResume delivers a signal for a callback token.
func (s *WaitServer) handleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	correlationID, err := req.RequireString("correlation_id")
	if err != nil {
		return mcp.NewToolResultError("correlation_id is required"), nil
	}

	args := req.GetArguments()
	signal := schema.ResumeSignal{
		Path:          optionalString(args, "path"),
		ActionClicked: optionalString(args, "action_clicked"),
		ActorName:     optionalString(args, "actor_name"),
	}

	d, err := s.host.Deliver(ctx, correlationID, signal)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resume failed: %v", err)), nil
	}
	s.captureSession(ctx, d.Suspension.RunID)

	return marshalResult(d)
}

// handleStatus lists waits.
func (s *WaitServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.SuspensionFilter{
		RunID:  req.GetString("run_id", ""),
		Status: schema.SuspensionStatus(req.GetString("status", "")),
		Limit:  extractInt(req.GetArguments(), "limit", 100),
	}
	if filter.RunID != "" {
		s.captureSession(ctx, filter.RunID)
	}

	list, err := s.host.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %v", err)), nil
	}
	if list == nil {
		list = []*store.Suspension{}
	}
	return marshalResult(map[string]any{
		"waits": list,
		"total": len(list),
	})
}

// handleHistory replays the event log of a run.
func (s *WaitServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	history, err := s.host.History(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
	}
	return marshalResult(history)
}

// optionalString returns nil when key is absent or not a string.
func optionalString(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func extractInt(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return defaultVal
}

// captureSession subscribes the calling MCP session to events of runID.
func (s *WaitServer) captureSession(ctx context.Context, runID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(runID, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
