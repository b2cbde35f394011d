// Package anthropic is a minimal streaming client for the Anthropic
// Messages API: request construction, server-sent-event decoding, and
// accumulation of a full model turn into a StreamResult.
package anthropic

import (
	"encoding/json"
	"fmt"
)

// Stop reasons reported by the API via message_delta events.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Request is the body of a Messages API call.
type Request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Tools     []Tool    `json:"tools,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

// Message is one transcript entry. Content serializes either as a plain
// string or as an array of typed content blocks.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is a string-or-blocks union. When Blocks is nil the
// content marshals as a JSON string, otherwise as a block array.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

// MarshalJSON implements json.Marshaler.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Blocks == nil {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Blocks)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Blocks = nil
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content is neither string nor block array: %w", err)
	}
	c.Blocks = blocks
	return nil
}

// TextContent wraps plain text as message content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// BlockContent wraps content blocks as message content.
func BlockContent(blocks ...ContentBlock) MessageContent {
	return MessageContent{Blocks: blocks}
}

// ContentBlock is one element of a block-array message body. The Type
// field discriminates; unused fields are omitted on the wire.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Source    *ImageSource    `json:"source,omitempty"`
}

// ImageSource carries an inline base64 image.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ToolUseBlock builds a tool_use content block echoing a model request.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: "tool_use", ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result content block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: "tool_result", ToolUseID: toolUseID, Content: content, IsError: isError}
}

// ImageBlock builds an inline base64 image content block.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: "image", Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data}}
}

// Tool is one entry of the tool-definition array sent with a request.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolCall is a completed tool invocation reconstructed from the stream.
// Input is the parsed tool argument object; tools pull their expected
// fields out of the map and default the rest.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// StreamResult accumulates one full model invocation: the concatenated
// text, tool calls in encounter order, the stop reason, and usage.
type StreamResult struct {
	Text         string
	ToolCalls    []ToolCall
	StopReason   string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

type usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
