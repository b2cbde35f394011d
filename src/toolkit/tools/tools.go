// Package tools assembles the built-in toolbox.
package tools

import (
	"fmt"
	"log/slog"

	"github.com/parley-chat/parley/src/toolkit"
	"github.com/parley-chat/parley/src/toolkit/tools/tool_clock"
	"github.com/parley-chat/parley/src/toolkit/tools/tool_weather"
	"github.com/parley-chat/parley/src/toolkit/tools/tool_websearch"
)

// DefaultToolbox builds a toolbox with every built-in tool registered.
func DefaultToolbox(logger *slog.Logger) (*toolkit.Toolbox, error) {
	toolbox := toolkit.NewToolbox()

	builders := []func() (toolkit.Tool, error){
		tool_websearch.New,
		tool_weather.New,
		tool_clock.New,
	}
	for _, build := range builders {
		tool, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to build tool: %w", err)
		}
		if err := toolbox.Register(tool); err != nil {
			return nil, err
		}
	}

	if logger != nil {
		toolbox.RegisterMiddleware(toolkit.LoggingMiddleware(logger))
	}

	return toolbox, nil
}
