// Package toolkit defines the tool contract and the toolbox that
// dispatches model-requested tool calls.
package toolkit

import (
	"context"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// Result is what a tool execution produces. Text goes back to the
// model as the tool result; Marker, when non-empty, is an encoded
// marker line the engine embeds in the final persisted message.
// Tools never raise: internal failures are encoded as explanatory
// Text so the model can react to them.
type Result struct {
	Text   string
	Marker string
}

// Tool is the interface that all tools must implement
type Tool interface {
	// GetName returns the tool's name
	GetName() string

	// GetDescription returns the tool's description
	GetDescription() string

	// GetParameters returns the JSON schema for the tool's input
	GetParameters() *jsonschema.Schema

	// Execute runs the tool with the parsed input object. Input keys
	// the tool does not recognize are ignored; missing keys default.
	Execute(ctx context.Context, input map[string]any) Result
}

// StringField extracts a string value from a tool input map, returning
// fallback when the key is absent or not a string.
func StringField(input map[string]any, key, fallback string) string {
	if value, ok := input[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

// IntField extracts an integer value from a tool input map. JSON
// numbers arrive as float64.
func IntField(input map[string]any, key string, fallback int) int {
	switch value := input[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	default:
		return fallback
	}
}
