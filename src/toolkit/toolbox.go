package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/parley-chat/parley/src/anthropic"
)

// Executor is a function type for tool execution.
type Executor func(ctx context.Context, name string, input map[string]any) Result

// Middleware wraps an Executor to add functionality.
type Middleware func(next Executor) Executor

// Toolbox handles tool registration and dispatch.
type Toolbox struct {
	tools      map[string]Tool
	middleware []Middleware
}

// NewToolbox creates an empty toolbox.
func NewToolbox() *Toolbox {
	return &Toolbox{tools: make(map[string]Tool)}
}

// Register registers a tool.
func (tb *Toolbox) Register(tool Tool) error {
	if tool.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := tb.tools[tool.GetName()]; exists {
		return fmt.Errorf("tool %s is already registered", tool.GetName())
	}
	tb.tools[tool.GetName()] = tool
	return nil
}

// RegisterMiddleware registers middleware applied to all executions,
// first registered outermost.
func (tb *Toolbox) RegisterMiddleware(middleware Middleware) {
	tb.middleware = append(tb.middleware, middleware)
}

// Has checks if a tool is available.
func (tb *Toolbox) Has(name string) bool {
	_, exists := tb.tools[name]
	return exists
}

// Tools returns the registered tools sorted by name, so the definition
// array sent to the model is deterministic.
func (tb *Toolbox) Tools() []Tool {
	out := make([]Tool, 0, len(tb.tools))
	for _, tool := range tb.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// Definitions converts the registered tools into the wire-format
// tool-definition array.
func (tb *Toolbox) Definitions() []anthropic.Tool {
	tools := tb.Tools()
	defs := make([]anthropic.Tool, 0, len(tools))
	for _, tool := range tools {
		var schema json.RawMessage
		if params := tool.GetParameters(); params != nil {
			if data, err := json.Marshal(params); err == nil {
				schema = data
			}
		}
		defs = append(defs, anthropic.Tool{
			Name:        tool.GetName(),
			Description: tool.GetDescription(),
			InputSchema: schema,
		})
	}
	return defs
}

// Execute dispatches a tool call through the middleware chain. An
// unknown tool name produces an explanatory Result, not an error, so
// the model can correct itself.
func (tb *Toolbox) Execute(ctx context.Context, name string, input map[string]any) Result {
	executor := Executor(func(ctx context.Context, name string, input map[string]any) Result {
		tool, exists := tb.tools[name]
		if !exists {
			return Result{Text: fmt.Sprintf("Tool not found: %s", name)}
		}
		return tool.Execute(ctx, input)
	})

	for i := len(tb.middleware) - 1; i >= 0; i-- {
		executor = tb.middleware[i](executor)
	}

	return executor(ctx, name, input)
}

// LoggingMiddleware logs tool execution details.
func LoggingMiddleware(logger interface {
	Info(msg string, args ...interface{})
}) Middleware {
	return func(next Executor) Executor {
		return func(ctx context.Context, name string, input map[string]any) Result {
			logger.Info("executing tool", "tool", name)
			result := next(ctx, name, input)
			logger.Info("tool execution completed", "tool", name, "result_bytes", len(result.Text))
			return result
		}
	}
}
