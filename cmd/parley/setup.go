package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley-chat/parley/src/app"
	"github.com/parley-chat/parley/src/config"
	"github.com/parley-chat/parley/src/credential"
	"github.com/parley-chat/parley/src/storage"
)

// loadConfig reads the config file, honoring the --config override and
// any flags that shadow file values.
func loadConfig(cli *CLI) (*config.Config, error) {
	path := cli.Config
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cli.BaseURL != "" {
		cfg.BaseURL = cli.BaseURL
	}
	return cfg, nil
}

// credentialChain resolves keys flag-first, then environment, then the
// config file's credentials block.
func credentialChain(cli *CLI, cfg *config.Config) credential.Store {
	chain := credential.Chain{}
	if cli.APIKey != "" {
		chain = append(chain, credential.StaticStore{app.ServiceName: cli.APIKey})
	}
	chain = append(chain, credential.EnvStore{})
	if len(cfg.Credentials) > 0 {
		chain = append(chain, credential.StaticStore(cfg.Credentials))
	}
	return chain
}

// buildApp assembles config plus storage for commands that never talk
// to the model; no credential is required.
func buildApp(cli *CLI, logger *slog.Logger) (*app.App, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, err
	}

	return app.New(app.Options{
		Config: cfg,
		Logger: logger,
	})
}

// buildChatApp assembles the fully wired app, including the model
// client. mutate, when non-nil, adjusts the loaded config before
// wiring.
func buildChatApp(cli *CLI, logger *slog.Logger, mutate func(*config.Config)) (*app.App, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}

	return app.NewWithModel(app.Options{
		Config:      cfg,
		Credentials: credentialChain(cli, cfg),
		Logger:      logger,
	})
}

// resolveSession looks a session up by name, creating it on first use.
// The default session always exists.
func resolveSession(ctx context.Context, db storage.ExecQuerier, name string, defaultThreshold int) (*storage.Session, error) {
	if name == "" || name == storage.DefaultSessionName {
		return storage.EnsureDefaultSession(ctx, db)
	}
	session, err := storage.GetSessionByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	session = &storage.Session{Name: name, ContextThreshold: defaultThreshold}
	if err := storage.CreateSession(ctx, db, session); err != nil {
		return nil, fmt.Errorf("failed to create session %q: %w", name, err)
	}
	return session, nil
}
