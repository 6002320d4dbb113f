package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWaitServer(t *testing.T) {
	s := NewWaitServer(WaitServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.notifier)
}

func TestToolRegistration(t *testing.T) {
	s := NewWaitServer(WaitServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 3)

	for _, name := range []string{"actionwait.resume", "actionwait.status", "actionwait.history"} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"resume", "actionwait.resume", "Deliver a resume signal to a parked wait"},
		{"status", "actionwait.status", "List waits and their status"},
		{"history", "actionwait.history", "Summarize how the waits of a run progressed"},
	}

	s := NewWaitServer(WaitServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
