package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/parley-chat/parley/src/anthropic"
	"github.com/parley-chat/parley/src/imaging"
	"github.com/parley-chat/parley/src/marker"
	"github.com/parley-chat/parley/src/storage"
	"github.com/parley-chat/parley/src/toolkit"
)

// scriptedTransport plays back canned stream results and records every
// request it saw.
type scriptedTransport struct {
	calls    int
	requests []*anthropic.Request
	respond  func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error)
}

func (s *scriptedTransport) StreamMessage(ctx context.Context, req *anthropic.Request, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
	s.calls++
	s.requests = append(s.requests, req)
	return s.respond(s.calls, onText)
}

type fakeTool struct {
	name   string
	result toolkit.Result
	calls  int
}

func (f *fakeTool) GetName() string                   { return f.name }
func (f *fakeTool) GetDescription() string            { return "test tool" }
func (f *fakeTool) GetParameters() *jsonschema.Schema { return nil }
func (f *fakeTool) Execute(ctx context.Context, input map[string]any) toolkit.Result {
	f.calls++
	return f.result
}

func textResult(text string, onText anthropic.TextFunc) *anthropic.StreamResult {
	onText(text)
	return &anthropic.StreamResult{
		Text:         text,
		StopReason:   anthropic.StopEndTurn,
		Model:        "claude-sonnet-4-5",
		InputTokens:  10,
		OutputTokens: 5,
	}
}

func toolResult(name string, input map[string]any) *anthropic.StreamResult {
	return &anthropic.StreamResult{
		ToolCalls:    []anthropic.ToolCall{{ID: "toolu_01", Name: name, Input: input}},
		StopReason:   anthropic.StopToolUse,
		Model:        "claude-sonnet-4-5",
		InputTokens:  10,
		OutputTokens: 5,
	}
}

func newTestEngine(t *testing.T, transport Transport, toolbox *toolkit.Toolbox) (*Engine, *storage.DB, *storage.Session) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "parley.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	session, err := storage.EnsureDefaultSession(context.Background(), db.DB())
	if err != nil {
		t.Fatalf("EnsureDefaultSession failed: %v", err)
	}

	eng := New(Config{
		DB:          db.DB(),
		Transport:   transport,
		Toolbox:     toolbox,
		Model:       "claude-sonnet-4-5",
		MaxTokens:   1024,
		ToolTimeout: 5 * time.Second,
		Logger:      slog.New(slog.DiscardHandler),
	})
	return eng, db, session
}

func TestSendPlainTextTurn(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			return textResult("Hello there.", onText), nil
		},
	}
	eng, db, session := newTestEngine(t, transport, nil)
	ctx := context.Background()

	var streamed strings.Builder
	reply, err := eng.Send(ctx, session, "hi", nil, Callbacks{OnText: func(d string) { streamed.WriteString(d) }})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if streamed.String() != "Hello there." {
		t.Errorf("streamed text = %q", streamed.String())
	}
	if reply.Content != "Hello there." {
		t.Errorf("persisted content = %q", reply.Content)
	}
	if reply.Model != "claude-sonnet-4-5" || reply.InputTokens != 10 || reply.OutputTokens != 5 {
		t.Errorf("usage not recorded on message: %+v", reply)
	}

	messages, err := storage.GetMessagesBySession(ctx, db.DB(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user+assistant rows, got %d", len(messages))
	}
	if messages[0].TurnID == "" || messages[0].TurnID != messages[1].TurnID {
		t.Errorf("turn ids not shared: %q vs %q", messages[0].TurnID, messages[1].TurnID)
	}
	for _, m := range messages {
		if !m.IsFinalResponse || m.TextGrade != storage.MaxGrade {
			t.Errorf("message not persisted as final grade-5: %+v", m)
		}
	}

	updated, err := storage.GetSessionByID(ctx, db.DB(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.InputTokens != 10 || updated.OutputTokens != 5 {
		t.Errorf("session usage = %d/%d", updated.InputTokens, updated.OutputTokens)
	}
}

func TestSendToolTurn(t *testing.T) {
	weatherMarker, err := marker.Encode(marker.KindWeather, marker.WeatherPayload{Location: "Oslo", TempC: -3, Condition: "snow"})
	if err != nil {
		t.Fatal(err)
	}

	tool := &fakeTool{name: "get_weather", result: toolkit.Result{Text: "-3C, snow", Marker: weatherMarker}}
	toolbox := toolkit.NewToolbox()
	if err := toolbox.Register(tool); err != nil {
		t.Fatal(err)
	}

	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			if call == 1 {
				return toolResult("get_weather", map[string]any{"location": "Oslo"}), nil
			}
			return textResult("It is snowing in Oslo.", onText), nil
		},
	}
	eng, db, session := newTestEngine(t, transport, toolbox)
	ctx := context.Background()

	var toolsRun []string
	reply, err := eng.Send(ctx, session, "weather in oslo?", nil, Callbacks{
		OnToolStart: func(name string) { toolsRun = append(toolsRun, name) },
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if transport.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", transport.calls)
	}
	if tool.calls != 1 || len(toolsRun) != 1 || toolsRun[0] != "get_weather" {
		t.Errorf("tool execution not observed: calls=%d seen=%v", tool.calls, toolsRun)
	}

	// The marker travels with the persisted reply, ahead of the text.
	if !strings.HasPrefix(reply.Content, weatherMarker) {
		t.Errorf("weather marker not prepended: %q", reply.Content)
	}
	if !strings.HasSuffix(reply.Content, "It is snowing in Oslo.") {
		t.Errorf("reply text missing: %q", reply.Content)
	}

	// Usage accumulates across both invocations.
	if reply.InputTokens != 20 || reply.OutputTokens != 10 {
		t.Errorf("usage = %d/%d", reply.InputTokens, reply.OutputTokens)
	}

	// The follow-up request replays the tool exchange verbatim.
	second := transport.requests[1]
	n := len(second.Messages)
	if n < 3 {
		t.Fatalf("follow-up request too short: %d messages", n)
	}
	echo := second.Messages[n-2]
	if echo.Role != storage.RoleAssistant || len(echo.Content.Blocks) != 1 || echo.Content.Blocks[0].Type != "tool_use" {
		t.Errorf("assistant tool_use echo malformed: %+v", echo)
	}
	results := second.Messages[n-1]
	if results.Role != storage.RoleUser || len(results.Content.Blocks) != 1 {
		t.Fatalf("tool_result message malformed: %+v", results)
	}
	block := results.Content.Blocks[0]
	if block.Type != "tool_result" || block.ToolUseID != "toolu_01" || block.Content != "-3C, snow" {
		t.Errorf("tool_result block wrong: %+v", block)
	}

	messages, err := storage.GetMessagesBySession(ctx, db.DB(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	// Intermediate tool traffic is never persisted.
	if len(messages) != 2 {
		t.Errorf("expected only user+final rows, got %d", len(messages))
	}
}

func TestSendStopsAtIterationCap(t *testing.T) {
	tool := &fakeTool{name: "get_weather", result: toolkit.Result{Text: "still snowing"}}
	toolbox := toolkit.NewToolbox()
	if err := toolbox.Register(tool); err != nil {
		t.Fatal(err)
	}

	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			return toolResult("get_weather", nil), nil
		},
	}
	eng, _, session := newTestEngine(t, transport, toolbox)

	reply, err := eng.Send(context.Background(), session, "loop forever", nil, Callbacks{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if transport.calls != maxToolIterations {
		t.Errorf("expected exactly %d model calls, got %d", maxToolIterations, transport.calls)
	}
	// Tools run once per completed iteration; the capped final
	// invocation's requests are abandoned.
	if tool.calls != maxToolIterations-1 {
		t.Errorf("expected %d tool executions, got %d", maxToolIterations-1, tool.calls)
	}
	if reply == nil {
		t.Fatal("capped turn must still persist a reply")
	}
}

func TestSendSeparatesIterationText(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			if call == 1 {
				onText("Checking the forecast.")
				r := toolResult("get_weather", nil)
				r.Text = "Checking the forecast."
				return r, nil
			}
			return textResult("Snow all week.", onText), nil
		},
	}
	tool := &fakeTool{name: "get_weather", result: toolkit.Result{Text: "snow"}}
	toolbox := toolkit.NewToolbox()
	if err := toolbox.Register(tool); err != nil {
		t.Fatal(err)
	}
	eng, _, session := newTestEngine(t, transport, toolbox)

	var streamed strings.Builder
	reply, err := eng.Send(context.Background(), session, "forecast?", nil, Callbacks{
		OnText: func(d string) { streamed.WriteString(d) },
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want := "Checking the forecast.\n\nSnow all week."
	if streamed.String() != want {
		t.Errorf("streamed = %q, want %q", streamed.String(), want)
	}
	if reply.Content != want {
		t.Errorf("persisted = %q, want %q", reply.Content, want)
	}
}

func TestSendToolUseWithoutToolboxEndsTurn(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			onText("Let me check that.")
			r := toolResult("get_weather", map[string]any{"location": "Oslo"})
			r.Text = "Let me check that."
			return r, nil
		},
	}
	eng, db, session := newTestEngine(t, transport, nil)
	ctx := context.Background()

	// A stream carrying tool_use when the request advertised no tools
	// must end the turn gracefully, not crash it.
	reply, err := eng.Send(ctx, session, "weather?", nil, Callbacks{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if transport.calls != 1 {
		t.Errorf("expected a single model call, got %d", transport.calls)
	}
	if reply.Content != "Let me check that." {
		t.Errorf("persisted content = %q", reply.Content)
	}

	messages, err := storage.GetMessagesBySession(ctx, db.DB(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Errorf("expected user+assistant rows, got %d", len(messages))
	}
}

func TestSendWithAttachment(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			if call == 1 {
				return textResult("A small red square.", onText), nil
			}
			return textResult("Still a red square.", onText), nil
		},
	}
	eng, db, session := newTestEngine(t, transport, nil)
	ctx := context.Background()

	att := imaging.Attachment{MediaType: "image/png", Data: "aGVsbG8="}
	if _, err := eng.Send(ctx, session, "what is this?", []imaging.Attachment{att}, Callbacks{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// The wire message carries the full-fidelity image block plus text.
	first := transport.requests[0]
	blocks := first.Messages[len(first.Messages)-1].Content.Blocks
	if len(blocks) != 2 || blocks[0].Type != "image" || blocks[1].Text != "what is this?" {
		t.Fatalf("turn-time wire blocks wrong: %+v", blocks)
	}
	if blocks[0].Source == nil || blocks[0].Source.Data != "aGVsbG8=" {
		t.Errorf("image payload missing from turn-time block: %+v", blocks[0])
	}

	// The persisted user message embeds the payload as an image marker.
	messages, err := storage.GetMessagesBySession(ctx, db.DB(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	images, remaining := marker.ExtractImages(messages[0].Content)
	if len(images) != 1 || images[0].Data != "aGVsbG8=" {
		t.Fatalf("persisted content missing image marker: %q", messages[0].Content)
	}
	if remaining != "what is this?" {
		t.Errorf("visible text = %q", remaining)
	}

	// A later turn replays the placeholder, never the payload bytes.
	if _, err := eng.Send(ctx, session, "and now?", nil, Callbacks{}); err != nil {
		t.Fatalf("second Send failed: %v", err)
	}
	second := transport.requests[1]
	replayed := second.Messages[0].Content.Blocks
	if len(replayed) != 2 || replayed[0].Text != ImagePlaceholder || replayed[1].Text != "what is this?" {
		t.Fatalf("replayed image turn wrong: %+v", replayed)
	}
	for _, m := range second.Messages {
		if strings.Contains(m.Content.Text, "aGVsbG8=") {
			t.Error("image payload leaked into replay text")
		}
		for _, b := range m.Content.Blocks {
			if b.Source != nil || strings.Contains(b.Text, "aGVsbG8=") {
				t.Errorf("image payload leaked into replay block: %+v", b)
			}
		}
	}
}

func TestSendTransportFailureKeepsUserMessage(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	eng, db, session := newTestEngine(t, transport, nil)
	ctx := context.Background()

	if _, err := eng.Send(ctx, session, "hello?", nil, Callbacks{}); err == nil {
		t.Fatal("expected transport error")
	}

	messages, err := storage.GetMessagesBySession(ctx, db.DB(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 || messages[0].Role != storage.RoleUser {
		t.Fatalf("expected only the user message to survive, got %+v", messages)
	}
}

func TestSendExcludesLowGradedHistory(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			return textResult("ok", onText), nil
		},
	}
	eng, db, session := newTestEngine(t, transport, nil)
	ctx := context.Background()

	if err := storage.SetThreshold(ctx, db.DB(), session.ID, 3); err != nil {
		t.Fatal(err)
	}
	session.ContextThreshold = 3

	seed := func(role, content string, grade int) {
		t.Helper()
		m := storage.Message{
			SessionID:       session.ID,
			Role:            role,
			Content:         content,
			TurnID:          "turn-" + content,
			IsFinalResponse: true,
			TextGrade:       grade,
		}
		if err := storage.CreateMessage(ctx, db.DB(), &m); err != nil {
			t.Fatal(err)
		}
	}
	seed(storage.RoleUser, "keep me", 4)
	seed(storage.RoleAssistant, "kept reply", 5)
	seed(storage.RoleUser, "drop me", 2)
	seed(storage.RoleAssistant, "dropped reply", 5)

	if _, err := eng.Send(ctx, session, "next question", nil, Callbacks{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	req := transport.requests[0]
	if len(req.Messages) != 3 {
		t.Fatalf("expected kept turn + new message, got %d messages", len(req.Messages))
	}
	if req.Messages[0].Content.Text != "keep me" || req.Messages[1].Content.Text != "kept reply" {
		t.Errorf("kept turn wrong: %+v", req.Messages[:2])
	}
	if req.Messages[2].Content.Text != "next question" {
		t.Errorf("new message missing: %+v", req.Messages[2])
	}
}

func TestSendEndToEndOverHTTP(t *testing.T) {
	body := strings.Join([]string{
		"event: message_start",
		`data: {"type":"message_start","message":{"model":"claude-sonnet-4-5","usage":{"input_tokens":12}}}`,
		"",
		"event: content_block_start",
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`,
		"",
		"event: content_block_stop",
		`data: {"type":"content_block_stop","index":0}`,
		"",
		"event: message_delta",
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":7}}`,
		"",
		"event: message_stop",
		`data: {"type":"message_stop"}`,
		"",
		"",
	}, "\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
	defer server.Close()

	client, err := anthropic.NewClient(anthropic.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Logger:  slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	eng, db, session := newTestEngine(t, client, nil)
	ctx := context.Background()

	var streamed strings.Builder
	reply, err := eng.Send(ctx, session, "hello", nil, Callbacks{OnText: func(d string) { streamed.WriteString(d) }})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if streamed.String() != "hi" || reply.Content != "hi" {
		t.Errorf("reply = %q / %q", streamed.String(), reply.Content)
	}
	if reply.InputTokens != 12 || reply.OutputTokens != 7 {
		t.Errorf("usage = %d/%d", reply.InputTokens, reply.OutputTokens)
	}

	updated, err := storage.GetSessionByID(ctx, db.DB(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.InputTokens != 12 || updated.OutputTokens != 7 {
		t.Errorf("session usage = %d/%d", updated.InputTokens, updated.OutputTokens)
	}
}

func TestHistoryBackfillsLegacyTurnIDs(t *testing.T) {
	transport := &scriptedTransport{
		respond: func(call int, onText anthropic.TextFunc) (*anthropic.StreamResult, error) {
			return textResult("ok", onText), nil
		},
	}
	eng, db, session := newTestEngine(t, transport, nil)
	ctx := context.Background()

	seed := func(role, content string) {
		t.Helper()
		m := storage.Message{
			SessionID: session.ID,
			Role:      role,
			Content:   content,
			TextGrade: storage.MaxGrade,
		}
		if err := storage.CreateMessage(ctx, db.DB(), &m); err != nil {
			t.Fatal(err)
		}
	}
	seed(storage.RoleUser, "old question")
	seed(storage.RoleAssistant, "old answer")
	seed(storage.RoleUser, "stranded question")

	history, err := eng.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(history))
	}
	if history[0].TurnID == "" || history[0].TurnID != history[1].TurnID {
		t.Errorf("adjacent pair not grouped: %q vs %q", history[0].TurnID, history[1].TurnID)
	}
	if history[2].TurnID == "" || history[2].TurnID == history[0].TurnID {
		t.Errorf("stranded message should get its own turn id: %q", history[2].TurnID)
	}

	// Backfill persists; a second load sees the same grouping.
	again, err := eng.History(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i := range history {
		if again[i].TurnID != history[i].TurnID {
			t.Errorf("turn id changed between loads at %d: %q vs %q", i, history[i].TurnID, again[i].TurnID)
		}
	}
}
