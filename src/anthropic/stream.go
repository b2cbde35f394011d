package anthropic

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// TextFunc receives each text delta as it arrives so callers can render
// the response incrementally. It may be nil.
type TextFunc func(delta string)

// partialBlock tracks a content block being assembled from streaming
// events. Tool input JSON arrives as fragments that must be
// concatenated in order before parsing.
type partialBlock struct {
	blockType string
	toolID    string
	toolName  string
	inputJSON strings.Builder
}

// decodeStream folds the SSE events of one Messages API response into a
// StreamResult. Individual events that fail to decode are skipped, and
// an unparseable tool input degrades to an empty argument object; the
// remote stream is not under this client's control, so local decode
// problems never abort the turn.
func decodeStream(body io.Reader, onText TextFunc) (*StreamResult, error) {
	scanner := NewEventScanner(body)
	result := &StreamResult{}

	var text strings.Builder
	blocks := map[int]*partialBlock{}
	sawMessage := false

	for scanner.Scan() {
		event := scanner.Event()

		switch event.Type {
		case "message_start":
			var envelope struct {
				Message struct {
					Model string `json:"model"`
					Usage usage  `json:"usage"`
				} `json:"message"`
			}
			if err := json.Unmarshal([]byte(event.Data), &envelope); err != nil {
				continue
			}
			sawMessage = true
			result.Model = envelope.Message.Model
			result.InputTokens = envelope.Message.Usage.InputTokens

		case "content_block_start":
			var envelope struct {
				Index        int `json:"index"`
				ContentBlock struct {
					Type string `json:"type"`
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"content_block"`
			}
			if err := json.Unmarshal([]byte(event.Data), &envelope); err != nil {
				continue
			}
			blocks[envelope.Index] = &partialBlock{
				blockType: envelope.ContentBlock.Type,
				toolID:    envelope.ContentBlock.ID,
				toolName:  envelope.ContentBlock.Name,
			}

		case "content_block_delta":
			var envelope struct {
				Index int `json:"index"`
				Delta struct {
					Type        string `json:"type"`
					Text        string `json:"text"`
					PartialJSON string `json:"partial_json"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(event.Data), &envelope); err != nil {
				continue
			}
			switch envelope.Delta.Type {
			case "text_delta":
				text.WriteString(envelope.Delta.Text)
				if onText != nil {
					onText(envelope.Delta.Text)
				}
			case "input_json_delta":
				if block, ok := blocks[envelope.Index]; ok {
					block.inputJSON.WriteString(envelope.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			var envelope struct {
				Index int `json:"index"`
			}
			if err := json.Unmarshal([]byte(event.Data), &envelope); err != nil {
				continue
			}
			block, ok := blocks[envelope.Index]
			if !ok || block.blockType != "tool_use" {
				continue
			}
			input := map[string]any{}
			raw := block.inputJSON.String()
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &input); err != nil {
					// Garbled tool input: attempt the call with empty
					// arguments and let the tool reject it downstream.
					input = map[string]any{}
				}
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:    block.toolID,
				Name:  block.toolName,
				Input: input,
			})
			delete(blocks, envelope.Index)

		case "message_delta":
			var envelope struct {
				Delta struct {
					StopReason string `json:"stop_reason"`
				} `json:"delta"`
				Usage struct {
					OutputTokens int64 `json:"output_tokens"`
				} `json:"usage"`
			}
			if err := json.Unmarshal([]byte(event.Data), &envelope); err != nil {
				continue
			}
			if envelope.Delta.StopReason != "" {
				result.StopReason = envelope.Delta.StopReason
			}
			if envelope.Usage.OutputTokens > 0 {
				result.OutputTokens = envelope.Usage.OutputTokens
			}

		case "error":
			var envelope ErrorResponse
			if json.Unmarshal([]byte(event.Data), &envelope) == nil && envelope.Error.Message != "" {
				return nil, fmt.Errorf("stream error: %s: %s", envelope.Error.Type, envelope.Error.Message)
			}
			return nil, fmt.Errorf("stream error: %s", event.Data)

		case "message_stop", "ping":
			// Nothing to capture.

		default:
			// Unrecognized event types are skipped for forward
			// compatibility.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading event stream: %w", err)
	}
	if !sawMessage {
		return nil, ErrEmptyStream
	}

	result.Text = text.String()
	return result, nil
}
