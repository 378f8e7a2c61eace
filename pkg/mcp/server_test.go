package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opguard/internal/actions"
)

func TestNewServer(t *testing.T) {
	s := NewServer(ServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.Len(t, s.mcpServer.ListTools(), 2)
}

func TestToolRegistration(t *testing.T) {
	reg := actions.NewRegistry()
	require.NoError(t, actions.RegisterGuardActions(reg, shoutGuard(), "shout"))
	s := NewServer(ServerDeps{Registry: reg})

	expected := []string{"guards.list", "guards.history", "shout_fix", "shout_validate"}
	require.Len(t, s.mcpServer.ListTools(), len(expected))
	for _, name := range expected {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestActionToolDefinition(t *testing.T) {
	reg := actions.NewRegistry()
	require.NoError(t, actions.RegisterGuardActions(reg, shoutGuard(), "shout"))
	s := NewServer(ServerDeps{Registry: reg})

	tool := s.mcpServer.GetTool("shout_fix")
	require.NotNil(t, tool)
	assert.Contains(t, tool.Tool.Description, `"shout"`)
	assert.Contains(t, tool.Tool.InputSchema.Required, "text")
	assert.Contains(t, tool.Tool.InputSchema.Properties, "metadata")
}
