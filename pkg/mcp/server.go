// Package mcp exposes registered guard actions as MCP tools.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/opguard/internal/actions"
	"github.com/rendis/opguard/internal/engine"
	"github.com/rendis/opguard/internal/store"
)

// Invoker runs an action by name. Satisfied by *engine.Invoker.
type Invoker interface {
	Invoke(ctx context.Context, name string, params map[string]any) (*engine.Result, error)
}

// History reads the invocation log. Satisfied by store.Store.
type History interface {
	ListInvocations(ctx context.Context, filter store.InvocationFilter) ([]*store.Invocation, error)
}

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Invoker  Invoker
	Registry actions.ActionRegistry
	// History backs guards.history. Nil makes the tool report the log as disabled.
	History History
	Version string
	Logger  *slog.Logger
}

// Server wraps an MCP server with one tool per registered action.
type Server struct {
	invoker   Invoker
	registry  actions.ActionRegistry
	history   History
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server. Action tools are taken from the registry at
// construction time; actions registered later are not exposed.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		invoker:  deps.Invoker,
		registry: deps.Registry,
		history:  deps.History,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"opguard",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("opguard checks and corrects model output with configured guards. Call {guard}_fix to get a corrected text, {guard}_validate to check text as is, guards.list to see what is available and guards.history to inspect past calls."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	tools := []server.ServerTool{
		{Tool: listTool(), Handler: s.handleList},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
	if s.registry == nil {
		return tools
	}
	for _, info := range s.registry.List() {
		tools = append(tools, server.ServerTool{
			Tool:    actionTool(info),
			Handler: s.actionHandler(info.Name),
		})
	}
	return tools
}

// --- Tool definitions ---

func actionTool(info actions.ActionInfo) mcp.Tool {
	return mcp.NewTool(info.Name,
		mcp.WithDescription(info.Description),
		mcp.WithString("text", mcp.Required(), mcp.Description("Model output to check")),
		mcp.WithObject("metadata", mcp.Description("Guard metadata passed through to the validator")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("guards.list",
		mcp.WithDescription("List registered guard actions"),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("guards.history",
		mcp.WithDescription("Query recorded guard invocations, newest first"),
		mcp.WithObject("filter", mcp.Description("Filter criteria (action, guard, outcome, since, limit, offset)")),
	)
}
