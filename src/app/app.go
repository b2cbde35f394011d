// Package app wires storage, the model client, the toolbox, and the
// conversation engine into one runnable unit.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parley-chat/parley/src/anthropic"
	"github.com/parley-chat/parley/src/config"
	"github.com/parley-chat/parley/src/credential"
	"github.com/parley-chat/parley/src/engine"
	"github.com/parley-chat/parley/src/storage"
	"github.com/parley-chat/parley/src/toolkit"
	"github.com/parley-chat/parley/src/toolkit/tools"
)

// ServiceName is the credential key the model client authenticates
// under. The environment store resolves it to ANTHROPIC_API_KEY.
const ServiceName = "anthropic"

// App holds every initialized service. Client, Engine, and Toolbox are
// nil unless the app was built with NewWithModel.
type App struct {
	Client  *anthropic.Client
	Store   *storage.DB
	Engine  *engine.Engine
	Toolbox *toolkit.Toolbox
	Logger  *slog.Logger
	Config  *config.Config
}

// Options configures App construction.
type Options struct {
	Config       *config.Config
	Credentials  credential.Store
	DatabasePath string
	Logger       *slog.Logger
}

// New wires config, logging, and storage. The model transport is left
// unconfigured: session management, grading, and stats work without a
// credential.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	dbPath := opts.DatabasePath
	if dbPath == "" {
		dbPath = config.GetDefaultStoragePaths().DatabasePath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return &App{
		Store:  store,
		Logger: logger,
		Config: cfg,
	}, nil
}

// NewWithModel builds a fully wired App including the model client,
// toolbox, and engine. The API key is resolved here, before anything
// touches the network: a missing credential is a configuration error
// the user fixes once, not something to rediscover mid-turn.
func NewWithModel(opts Options) (*App, error) {
	a, err := New(opts)
	if err != nil {
		return nil, err
	}

	var apiKey string
	var ok bool
	if opts.Credentials != nil {
		apiKey, ok = opts.Credentials.Get(ServiceName)
	}
	if !ok {
		a.Close()
		return nil, fmt.Errorf("no API key configured for %s: set ANTHROPIC_API_KEY or add a credentials entry to %s", ServiceName, config.GetDefaultConfigPath())
	}

	client, err := anthropic.NewClient(anthropic.Config{
		APIKey:  apiKey,
		BaseURL: a.Config.BaseURL,
		Logger:  a.Logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	var toolbox *toolkit.Toolbox
	if a.Config.EnableTools {
		toolbox, err = tools.DefaultToolbox(a.Logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Client = client
	a.Toolbox = toolbox
	a.Engine = engine.New(engine.Config{
		DB:           a.Store.DB(),
		Transport:    client,
		Toolbox:      toolbox,
		Model:        a.Config.Model,
		MaxTokens:    a.Config.MaxTokens,
		SystemPrompt: a.Config.SystemPrompt,
		ToolTimeout:  a.Config.ToolTimeout,
		Logger:       a.Logger,
	})
	return a, nil
}

// Close releases the resources held by the app.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
