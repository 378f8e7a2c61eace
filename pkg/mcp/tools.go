package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/opguard/internal/actions"
	"github.com/rendis/opguard/internal/store"
)

// actionHandler returns the tool handler that invokes the named action.
func (s *Server) actionHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		params := map[string]any{"text": text}
		if md := mcp.ParseStringMap(req, "metadata", nil); md != nil {
			params["metadata"] = md
		}

		if s.invoker == nil {
			return mcp.NewToolResultError("no invoker configured"), nil
		}
		res, invErr := s.invoker.Invoke(ctx, name, params)
		if invErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, invErr)), nil
		}
		return mcp.NewToolResultJSON(res.Output)
	}
}

type guardInfo struct {
	Action      string `json:"action"`
	Guard       string `json:"guard,omitempty"`
	Description string `json:"description,omitempty"`
}

// handleList returns every registered action with the guard behind it.
func (s *Server) handleList(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := make([]guardInfo, 0)
	if s.registry != nil {
		for _, a := range s.registry.List() {
			g, _ := actions.GuardNameOf(a.Name)
			infos = append(infos, guardInfo{Action: a.Name, Guard: g, Description: a.Description})
		}
	}
	return marshalResult(map[string]any{"actions": infos, "count": len(infos)})
}

// handleHistory lists invocations from the log.
func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("invocation log is disabled"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)
	f := store.InvocationFilter{
		Action:  extractString(filter, "action"),
		Guard:   extractString(filter, "guard"),
		Outcome: extractString(filter, "outcome"),
		Limit:   extractInt(filter, "limit", 20),
		Offset:  extractInt(filter, "offset", 0),
	}
	if since := extractString(filter, "since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since %q: want RFC 3339", since)), nil
		}
		f.Since = &t
	}

	invs, err := s.history.ListInvocations(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if invs == nil {
		invs = []*store.Invocation{}
	}
	return marshalResult(map[string]any{"invocations": invs, "count": len(invs)})
}

func extractString(filter map[string]any, key string) string {
	if filter == nil {
		return ""
	}
	v, _ := filter[key].(string)
	return v
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	switch val := filter[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
