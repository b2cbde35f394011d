package toolkit

import (
	"context"
	"testing"

	jsonschema "github.com/swaggest/jsonschema-go"
)

type stubTool struct {
	name   string
	result Result
}

func (s *stubTool) GetName() string                   { return s.name }
func (s *stubTool) GetDescription() string            { return "stub" }
func (s *stubTool) GetParameters() *jsonschema.Schema { return nil }
func (s *stubTool) Execute(ctx context.Context, input map[string]any) Result {
	return s.result
}

func TestRegisterAndExecute(t *testing.T) {
	tb := NewToolbox()
	if err := tb.Register(&stubTool{name: "echo", result: Result{Text: "ok"}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result := tb.Execute(context.Background(), "echo", nil)
	if result.Text != "ok" {
		t.Errorf("unexpected result: %q", result.Text)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	tb := NewToolbox()
	tb.Register(&stubTool{name: "echo"})
	if err := tb.Register(&stubTool{name: "echo"}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestExecuteUnknownToolReturnsText(t *testing.T) {
	tb := NewToolbox()
	result := tb.Execute(context.Background(), "missing", nil)
	if result.Text == "" {
		t.Error("unknown tool must produce explanatory text, not silence")
	}
}

func TestDefinitionsAreSorted(t *testing.T) {
	tb := NewToolbox()
	tb.Register(&stubTool{name: "zeta"})
	tb.Register(&stubTool{name: "alpha"})

	defs := tb.Definitions()
	if len(defs) != 2 || defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Errorf("definitions not sorted: %+v", defs)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	tb := NewToolbox()
	tb.Register(&stubTool{name: "echo", result: Result{Text: "x"}})

	var order []string
	tb.RegisterMiddleware(func(next Executor) Executor {
		return func(ctx context.Context, name string, input map[string]any) Result {
			order = append(order, "outer")
			return next(ctx, name, input)
		}
	})
	tb.RegisterMiddleware(func(next Executor) Executor {
		return func(ctx context.Context, name string, input map[string]any) Result {
			order = append(order, "inner")
			return next(ctx, name, input)
		}
	})

	tb.Execute(context.Background(), "echo", nil)
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware applied in wrong order: %v", order)
	}
}

func TestFieldHelpers(t *testing.T) {
	input := map[string]any{"query": "hi", "count": float64(3)}

	if got := StringField(input, "query", "d"); got != "hi" {
		t.Errorf("StringField = %q", got)
	}
	if got := StringField(input, "missing", "d"); got != "d" {
		t.Errorf("StringField default = %q", got)
	}
	if got := IntField(input, "count", 1); got != 3 {
		t.Errorf("IntField = %d", got)
	}
	if got := IntField(input, "missing", 1); got != 1 {
		t.Errorf("IntField default = %d", got)
	}
}
