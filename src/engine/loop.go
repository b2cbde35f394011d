package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/src/anthropic"
	"github.com/parley-chat/parley/src/imaging"
	"github.com/parley-chat/parley/src/marker"
	"github.com/parley-chat/parley/src/storage"
)

// maxToolIterations caps model invocations within one turn. A model
// that keeps requesting tools past this is cut off and whatever text it
// produced so far becomes the reply.
const maxToolIterations = 5

// Send runs one conversation turn against session. The user message is
// persisted before the first model call, so a transport failure leaves
// it in place for the next attempt. The returned message is the
// persisted final assistant reply.
func (e *Engine) Send(ctx context.Context, session *storage.Session, text string, attachments []imaging.Attachment, cb Callbacks) (*storage.Message, error) {
	history, err := e.History(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	wire := wireHistory(FilterReplay(history, session.ContextThreshold))

	userContent, userWire, err := buildUserMessage(text, attachments)
	if err != nil {
		return nil, err
	}

	turnID := uuid.New().String()
	userMsg := storage.Message{
		SessionID:       session.ID,
		Role:            storage.RoleUser,
		Content:         userContent,
		TurnID:          turnID,
		IsFinalResponse: true,
		TextGrade:       storage.MaxGrade,
	}
	if err := storage.CreateMessage(ctx, e.db, &userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	apiMessages := append(wire, userWire)

	var (
		replyText   strings.Builder
		toolMarkers []string
		totalInput  int64
		totalOutput int64
		model       = e.model
		last        *anthropic.StreamResult
	)

	var tools []anthropic.Tool
	if e.toolbox != nil {
		tools = e.toolbox.Definitions()
	}

	for iteration := 1; iteration <= maxToolIterations; iteration++ {
		req := &anthropic.Request{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			System:    e.systemPrompt,
			Messages:  apiMessages,
			Tools:     tools,
		}

		// Separate this invocation's text from the previous one, both
		// in the live stream and in the persisted reply.
		needSep := replyText.Len() > 0
		onText := func(delta string) {
			if needSep {
				needSep = false
				replyText.WriteString("\n\n")
				cb.text("\n\n")
			}
			replyText.WriteString(delta)
			cb.text(delta)
		}

		result, err := e.transport.StreamMessage(ctx, req, onText)
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}
		last = result
		totalInput += result.InputTokens
		totalOutput += result.OutputTokens
		if result.Model != "" {
			model = result.Model
		}

		if result.StopReason != anthropic.StopToolUse || len(result.ToolCalls) == 0 {
			break
		}
		if e.toolbox == nil {
			// The request advertised no tools, so tool_use here is a
			// protocol anomaly. Take the text produced so far as the
			// answer rather than aborting the turn.
			e.logger.Warn("model requested tools but none are available",
				"session_id", session.ID, "turn_id", turnID)
			break
		}
		if iteration == maxToolIterations {
			e.logger.Warn("tool iteration limit reached, truncating turn",
				"session_id", session.ID, "turn_id", turnID)
			break
		}

		assistantEcho, err := toolUseEcho(result)
		if err != nil {
			return nil, err
		}
		apiMessages = append(apiMessages, assistantEcho)

		results := make([]anthropic.ContentBlock, 0, len(result.ToolCalls))
		for _, call := range result.ToolCalls {
			cb.toolStart(call.Name)
			toolCtx, cancel := context.WithTimeout(ctx, e.toolTimeout)
			res := e.toolbox.Execute(toolCtx, call.Name, call.Input)
			timedOut := toolCtx.Err() != nil && ctx.Err() == nil
			cancel()
			cb.toolDone(call.Name)

			if res.Marker != "" {
				toolMarkers = append(toolMarkers, res.Marker)
			}
			content := res.Text
			if timedOut && content == "" {
				content = fmt.Sprintf("tool %s timed out after %s", call.Name, e.toolTimeout)
			}
			results = append(results, anthropic.ToolResultBlock(call.ID, content, timedOut))
		}
		apiMessages = append(apiMessages, anthropic.Message{
			Role:    storage.RoleUser,
			Content: anthropic.BlockContent(results...),
		})
	}

	finalText := replyText.String()
	if tips, _ := marker.ExtractTips(finalText); len(tips) > 0 {
		for _, tip := range tips {
			e.logger.Debug("model tip", "session_id", session.ID, "summary", tip.Summary)
		}
	}

	content := finalText
	if len(toolMarkers) > 0 {
		content = strings.Join(toolMarkers, "\n") + "\n\n" + finalText
	}

	assistantMsg := storage.Message{
		SessionID:       session.ID,
		Role:            storage.RoleAssistant,
		Content:         content,
		TurnID:          turnID,
		IsFinalResponse: true,
		TextGrade:       storage.MaxGrade,
		InputTokens:     totalInput,
		OutputTokens:    totalOutput,
		Model:           model,
	}
	if err := storage.CreateMessage(ctx, e.db, &assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	if err := storage.AddSessionUsage(ctx, e.db, session.ID, totalInput, totalOutput); err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	if last != nil && last.StopReason == anthropic.StopMaxTokens {
		e.logger.Warn("reply truncated by max_tokens", "session_id", session.ID, "turn_id", turnID)
	}

	return &assistantMsg, nil
}

// buildUserMessage produces the persisted content and the wire message
// for a user utterance. Attachments are embedded as image markers in
// storage but sent as full image blocks on this first, turn-time call.
func buildUserMessage(text string, attachments []imaging.Attachment) (string, anthropic.Message, error) {
	if len(attachments) == 0 {
		return text, anthropic.Message{Role: storage.RoleUser, Content: anthropic.TextContent(text)}, nil
	}

	var parts []string
	blocks := make([]anthropic.ContentBlock, 0, len(attachments)+1)
	for _, att := range attachments {
		m, err := marker.Encode(marker.KindImage, marker.ImagePayload{
			MediaType: att.MediaType,
			Data:      att.Data,
		})
		if err != nil {
			return "", anthropic.Message{}, fmt.Errorf("failed to encode image marker: %w", err)
		}
		parts = append(parts, m)
		blocks = append(blocks, anthropic.ImageBlock(att.MediaType, att.Data))
	}
	if text != "" {
		parts = append(parts, text)
		blocks = append(blocks, anthropic.TextBlock(text))
	}

	content := strings.Join(parts, "\n")
	return content, anthropic.Message{Role: storage.RoleUser, Content: anthropic.BlockContent(blocks...)}, nil
}

// toolUseEcho rebuilds the assistant message that requested tools, so
// the follow-up call carries the exchange verbatim.
func toolUseEcho(result *anthropic.StreamResult) (anthropic.Message, error) {
	blocks := make([]anthropic.ContentBlock, 0, len(result.ToolCalls)+1)
	if result.Text != "" {
		blocks = append(blocks, anthropic.TextBlock(result.Text))
	}
	for _, call := range result.ToolCalls {
		input, err := json.Marshal(call.Input)
		if err != nil {
			return anthropic.Message{}, fmt.Errorf("failed to marshal tool input: %w", err)
		}
		blocks = append(blocks, anthropic.ToolUseBlock(call.ID, call.Name, input))
	}
	return anthropic.Message{Role: storage.RoleAssistant, Content: anthropic.BlockContent(blocks...)}, nil
}
