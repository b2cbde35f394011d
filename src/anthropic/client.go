package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"

	// No overall client timeout: a streamed response is open for as
	// long as the model is generating. Cancellation comes from ctx.
	messagesPath = "/v1/messages"
)

// Config holds the configuration for the client.
type Config struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	RetryCount int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Client talks to the Anthropic Messages API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Messages API client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.APIVersion == "" {
		config.APIVersion = defaultAPIVersion
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "anthropic_client")

	return &Client{
		config:     config,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// StreamMessage sends a streaming Messages API request and folds the
// response events into a StreamResult, surfacing text deltas through
// onText as they arrive.
func (c *Client) StreamMessage(ctx context.Context, req *Request, onText TextFunc) (*StreamResult, error) {
	logger := c.logger.With("method", "StreamMessage", "model", req.Model)

	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logger.Debug("sending streaming message request", "messages", len(req.Messages), "tools", len(req.Tools))

	resp, err := c.doRequestWithRetry(ctx, body)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("received error response", "status_code", resp.StatusCode)
		return nil, c.handleError(resp)
	}

	result, err := decodeStream(resp.Body, onText)
	if err != nil {
		logger.Error("stream decode failed", "error", err)
		return nil, err
	}

	logger.Info("message complete",
		"stop_reason", result.StopReason,
		"tool_calls", len(result.ToolCalls),
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens)
	return result, nil
}

// newRequest creates an HTTP request with the required headers.
func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	url := c.config.BaseURL + messagesPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", c.config.APIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	return req, nil
}

// doRequestWithRetry retries connection failures and 5xx responses that
// occur before streaming begins. Once a 200 is returned the stream is
// live and failures mid-stream abort the turn instead.
func (c *Client) doRequestWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	logger := c.logger.With("method", "doRequestWithRetry")

	for i := 0; i < c.config.RetryCount; i++ {
		req, err := c.newRequest(ctx, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("request attempt failed", "attempt", i+1, "error", err)
			time.Sleep(c.config.RetryDelay * time.Duration(i+1))
			continue
		}

		// Client errors (4xx) are not retryable.
		if resp.StatusCode < 500 {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		logger.Debug("server error, retrying", "attempt", i+1, "status_code", resp.StatusCode)
		time.Sleep(c.config.RetryDelay * time.Duration(i+1))
	}

	logger.Error("request failed after all retries", "retry_count", c.config.RetryCount, "error", lastErr)
	return nil, fmt.Errorf("request failed after %d retries: %w", c.config.RetryCount, lastErr)
}

// handleError drains a non-2xx response body and converts it into an
// APIError carrying the status and body text.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			RequestID:  resp.Header.Get("request-id"),
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
		RequestID:  resp.Header.Get("request-id"),
	}
}
