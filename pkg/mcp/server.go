package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/actionwait/internal/host"
	"github.com/rendis/actionwait/internal/logging"
	"github.com/rendis/actionwait/internal/streaming"
)

// WaitServerDeps holds the dependencies for creating a WaitServer.
type WaitServerDeps struct {
	Host   *host.Host
	Hub    streaming.EventHub // optional; enables push notifications
	Logger *slog.Logger
}

// WaitServer wraps an MCP server with wait tool handlers.
type WaitServer struct {
	host      *host.Host
	hub       streaming.EventHub
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  *MCPNotifier
	mcpServer *server.MCPServer
}

// NewWaitServer creates a new WaitServer with all tools registered.
func NewWaitServer(deps WaitServerDeps) *WaitServer {
	s := &WaitServer{
		host:     deps.Host,
		hub:      deps.Hub,
		logger:   logging.Default(deps.Logger),
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"actionwait",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("actionwait parks workflow steps until a human clicks an action or the wait expires. Use actionwait.resume to deliver a click (or an empty wake-up) for a callback token, actionwait.status to list waits, and actionwait.history to see how the waits of a run ended."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
// Wait events for runs a client has looked at are pushed to that client.
func (s *WaitServer) Serve(ctx context.Context) error {
	if s.hub != nil {
		go func() {
			if err := s.notifier.Relay(ctx, s.hub); err != nil {
				s.logger.Warn("wait event relay stopped", slog.String("error", err.Error()))
			}
		}()
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *WaitServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *WaitServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: resumeTool(), Handler: s.handleResume},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func resumeTool() mcp.Tool {
	return mcp.NewTool("actionwait.resume",
		mcp.WithDescription("Deliver a resume signal to a parked wait"),
		mcp.WithString("correlation_id", mcp.Required(), mcp.Description("Callback token of the parked wait")),
		mcp.WithString("path", mcp.Description("Path of the wait the click was made on")),
		mcp.WithString("action_clicked", mcp.Description("Label of the clicked action; omit to signal expiry")),
		mcp.WithString("actor_name", mcp.Description("Name of the user who clicked")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("actionwait.status",
		mcp.WithDescription("List waits and their status"),
		mcp.WithString("run_id", mcp.Description("Only waits of this run")),
		mcp.WithString("status",
			mcp.Enum("parked", "resolved", "faulted"),
			mcp.Description("Only waits in this status"),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum number of waits (default 100)")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("actionwait.history",
		mcp.WithDescription("Summarize how the waits of a run progressed"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run")),
	)
}
