package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func optString(req mcp.CallToolRequest, key string) (string, bool) {
	v, ok := req.GetArguments()[key].(string)
	return v, ok
}

// optStrings accepts a JSON array of strings. Non-string elements are skipped.
func optStrings(req mcp.CallToolRequest, key string) ([]string, bool) {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// optInt accepts JSON numbers, which arrive as float64.
func optInt(req mcp.CallToolRequest, key string) (int, bool) {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func optBool(req mcp.CallToolRequest, key string) bool {
	v, _ := req.GetArguments()[key].(bool)
	return v
}

func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}
