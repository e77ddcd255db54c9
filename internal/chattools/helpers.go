// Package chattools implements the MCP tool surface of crosstalk. Each
// tool is a small struct holding the hub store and the caller's fixed
// identity; handlers validate arguments at the edge, call into the hub,
// and answer with a human-readable rendering plus a JSON payload.
package chattools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg reads an integer argument. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	args := req.GetArguments()
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// boolArg reads a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, def bool) bool {
	args := req.GetArguments()
	v, ok := args[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// stringsArg reads a string-array argument, dropping non-string items.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	args := req.GetArguments()
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resultWith builds a tool result carrying the human rendering first
// and the structured payload second, so both chat-style and
// programmatic consumers get what they need from one call.
func resultWith(rendered string, payload interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(rendered)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: rendered},
			mcp.TextContent{Type: "text", Text: string(data)},
		},
	}
}
