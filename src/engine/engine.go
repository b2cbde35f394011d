// Package engine runs conversation turns: it assembles replay history
// from graded storage, streams model output, drives the bounded tool
// loop, and persists the finished turn.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/parley-chat/parley/src/anthropic"
	"github.com/parley-chat/parley/src/storage"
	"github.com/parley-chat/parley/src/toolkit"
)

// Transport streams one model invocation. *anthropic.Client satisfies
// it; tests substitute a scripted implementation.
type Transport interface {
	StreamMessage(ctx context.Context, req *anthropic.Request, onText anthropic.TextFunc) (*anthropic.StreamResult, error)
}

// Config carries everything an Engine needs. Credentials are resolved
// before construction: the Transport arrives ready to authenticate, so
// a missing key fails at startup instead of mid-conversation.
type Config struct {
	DB        storage.ExecQuerier
	Transport Transport
	Toolbox   *toolkit.Toolbox

	Model        string
	MaxTokens    int
	SystemPrompt string
	ToolTimeout  time.Duration
	Logger       *slog.Logger
}

// Callbacks surface turn progress to the caller. Any field may be nil.
type Callbacks struct {
	// OnText receives streamed text deltas as they arrive.
	OnText func(delta string)
	// OnToolStart fires before a tool executes.
	OnToolStart func(name string)
	// OnToolDone fires after a tool returns.
	OnToolDone func(name string)
}

func (cb Callbacks) text(delta string) {
	if cb.OnText != nil {
		cb.OnText(delta)
	}
}

func (cb Callbacks) toolStart(name string) {
	if cb.OnToolStart != nil {
		cb.OnToolStart(name)
	}
}

func (cb Callbacks) toolDone(name string) {
	if cb.OnToolDone != nil {
		cb.OnToolDone(name)
	}
}

// Engine is safe for sequential use; a session's turns must not be
// interleaved.
type Engine struct {
	db        storage.ExecQuerier
	transport Transport
	toolbox   *toolkit.Toolbox

	model        string
	maxTokens    int
	systemPrompt string
	toolTimeout  time.Duration
	logger       *slog.Logger
}

const defaultToolTimeout = 30 * time.Second

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	toolTimeout := cfg.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = defaultToolTimeout
	}

	return &Engine{
		db:           cfg.DB,
		transport:    cfg.Transport,
		toolbox:      cfg.Toolbox,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
		toolTimeout:  toolTimeout,
		logger:       logger,
	}
}

// History returns a session's full transcript, backfilling turn ids on
// legacy rows along the way.
func (e *Engine) History(ctx context.Context, sessionID string) ([]storage.Message, error) {
	messages, err := storage.GetMessagesBySession(ctx, e.db, sessionID)
	if err != nil {
		return nil, err
	}
	if err := backfillTurnIDs(ctx, e.db, messages); err != nil {
		return nil, err
	}
	return messages, nil
}
