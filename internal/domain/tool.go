package domain

import "encoding/json"

// ToolCall is one named, parameterized CAD operation request. It is
// immutable once constructed: validation produces a normalized copy of
// the arguments instead of mutating the original.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// toolCallAliases covers the field spellings accepted from agent payloads.
// Some clients send "tool_name"/"parameters" instead of "name"/"arguments".
type toolCallAliases struct {
	Name       string         `json:"name"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
	Parameters map[string]any `json:"parameters"`
}

func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var raw toolCallAliases
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tc.Name = raw.Name
	if tc.Name == "" {
		tc.Name = raw.ToolName
	}
	tc.Arguments = raw.Arguments
	if tc.Arguments == nil {
		tc.Arguments = raw.Parameters
	}
	return nil
}

// ToolDefinition describes a tool to the agent-facing layer in a
// JSON-Schema compatible shape.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
