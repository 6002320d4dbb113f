package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/actionwait/internal/artifact"
	"github.com/rendis/actionwait/internal/host"
	"github.com/rendis/actionwait/internal/store"
	"github.com/rendis/actionwait/internal/streaming"
	"github.com/rendis/actionwait/internal/wait"
	"github.com/rendis/actionwait/pkg/schema"
)

type toolEnv struct {
	server *WaitServer
	host   *host.Host
	store  *store.LibSQLStore
	hub    *streaming.MemoryHub
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newToolEnv(t *testing.T) *toolEnv {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	var seq atomic.Int64
	hub := streaming.NewMemoryHub()
	h, err := host.New(s, host.Config{
		BaseURL: "http://localhost",
		Hub:     hub,
		Logger:  quietLogger(),
		NewID:   func() string { return fmt.Sprintf("tok-%d", seq.Add(1)) },
	})
	require.NoError(t, err)

	return &toolEnv{
		server: NewWaitServer(WaitServerDeps{Host: h, Hub: hub, Logger: quietLogger()}),
		host:   h,
		store:  s,
		hub:    hub,
	}
}

func (e *toolEnv) park(t *testing.T, runID, path string) string {
	t.Helper()
	blocks := []schema.Block{
		{"type": "actions", "elements": []any{
			map[string]any{"type": "button", "text": map[string]any{"type": "plain_text", "text": "Approve"}},
		}},
	}
	step := wait.NewStep(wait.StepConfig{Blocks: blocks, Timeout: time.Hour}, wait.StepDeps{
		Store:    store.ForRun(e.store, runID),
		Engine:   e.host.Engine(runID),
		Artifact: artifact.NewMemoryHandle(blocks),
		Logger:   quietLogger(),
	})
	res, err := e.host.BeginStep(context.Background(), runID, path, step, time.Now().UTC())
	require.NoError(t, err)
	return res.Suspend.Record.CorrelationID
}

// --- Helper ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

// --- Tests ---

func TestResumeToolAccepts(t *testing.T) {
	env := newToolEnv(t)
	token := env.park(t, "run-1", "approve")

	result, err := env.server.handleResume(context.Background(), buildRequest("actionwait.resume", map[string]any{
		"correlation_id": token,
		"path":           "approve",
		"action_clicked": "Approve",
		"actor_name":     "alice",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError, extractText(t, result))

	var resp struct {
		Suspension store.Suspension `json:"suspension"`
		Result     map[string]any   `json:"result"`
	}
	unmarshalResult(t, result, &resp)
	assert.Equal(t, schema.SuspensionResolved, resp.Suspension.Status)
	assert.Equal(t, "Approve", resp.Result["action"])
	assert.Equal(t, "alice", resp.Result["actor"])
	assert.Equal(t, false, resp.Result["isExpired"])
}

func TestResumeToolWithoutActionExpires(t *testing.T) {
	env := newToolEnv(t)
	token := env.park(t, "run-1", "approve")

	result, err := env.server.handleResume(context.Background(), buildRequest("actionwait.resume", map[string]any{
		"correlation_id": token,
		"path":           "approve",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp struct {
		Result map[string]any `json:"result"`
	}
	unmarshalResult(t, result, &resp)
	assert.Equal(t, true, resp.Result["isExpired"])
}

func TestResumeToolForeignPathReparks(t *testing.T) {
	env := newToolEnv(t)
	token := env.park(t, "run-1", "approve")

	result, err := env.server.handleResume(context.Background(), buildRequest("actionwait.resume", map[string]any{
		"correlation_id": token,
		"path":           "other",
		"action_clicked": "Approve",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp struct {
		Suspension store.Suspension `json:"suspension"`
		Result     map[string]any   `json:"result"`
	}
	unmarshalResult(t, result, &resp)
	assert.Equal(t, schema.SuspensionParked, resp.Suspension.Status)
	assert.NotContains(t, resp.Result, "isExpired")
}

func TestResumeToolErrors(t *testing.T) {
	env := newToolEnv(t)

	result, err := env.server.handleResume(context.Background(), buildRequest("actionwait.resume", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "correlation_id is required")

	result, err = env.server.handleResume(context.Background(), buildRequest("actionwait.resume", map[string]any{
		"correlation_id": "missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeNotFound)
}

func TestResumeToolSingleUse(t *testing.T) {
	env := newToolEnv(t)
	token := env.park(t, "run-1", "approve")
	args := map[string]any{"correlation_id": token, "path": "approve", "action_clicked": "Approve"}

	result, err := env.server.handleResume(context.Background(), buildRequest("actionwait.resume", args))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = env.server.handleResume(context.Background(), buildRequest("actionwait.resume", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeConflict)
}

func TestStatusTool(t *testing.T) {
	env := newToolEnv(t)
	env.park(t, "run-1", "a")
	env.park(t, "run-1", "b")
	env.park(t, "run-2", "c")

	result, err := env.server.handleStatus(context.Background(), buildRequest("actionwait.status", map[string]any{
		"run_id": "run-1",
		"status": "parked",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp struct {
		Waits []store.Suspension `json:"waits"`
		Total int                `json:"total"`
	}
	unmarshalResult(t, result, &resp)
	assert.Equal(t, 2, resp.Total)
	for _, w := range resp.Waits {
		assert.Equal(t, "run-1", w.RunID)
	}

	result, err = env.server.handleStatus(context.Background(), buildRequest("actionwait.status", map[string]any{"limit": float64(1)}))
	require.NoError(t, err)
	unmarshalResult(t, result, &resp)
	assert.Equal(t, 1, resp.Total)
}

func TestHistoryTool(t *testing.T) {
	env := newToolEnv(t)
	token := env.park(t, "run-1", "approve")
	_, err := env.host.Deliver(context.Background(), token, schema.ResumeSignal{})
	require.NoError(t, err)

	result, err := env.server.handleHistory(context.Background(), buildRequest("actionwait.history", map[string]any{"run_id": "run-1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var history map[string]store.WaitHistory
	unmarshalResult(t, result, &history)
	assert.Equal(t, store.HistoryExpired, history["approve"].State)

	result, err = env.server.handleHistory(context.Background(), buildRequest("actionwait.history", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestOptionalString(t *testing.T) {
	args := map[string]any{"a": "x", "b": "", "c": 3}
	require.NotNil(t, optionalString(args, "a"))
	assert.Equal(t, "x", *optionalString(args, "a"))
	require.NotNil(t, optionalString(args, "b"), "empty string is present")
	assert.Nil(t, optionalString(args, "c"))
	assert.Nil(t, optionalString(args, "missing"))
}

func TestRelayStopsWithContext(t *testing.T) {
	env := newToolEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.notifier.Relay(ctx, env.hub) }()

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	// Nobody watches run-1: publishing is a no-op for the relay.
	env.park(t, "run-1", "approve")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Equal(t, 0, env.hub.Subscribers())
}

func TestNotifyWithoutSession(t *testing.T) {
	env := newToolEnv(t)
	assert.NoError(t, env.server.notifier.Notify(context.Background(), "run-x", map[string]any{"k": "v"}))
}

// --- Test helpers ---

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}
