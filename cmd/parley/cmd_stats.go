package main

import (
	"context"
	"fmt"

	"github.com/parley-chat/parley/src/storage"
)

// StatsCmd prints a session's accumulated token usage.
type StatsCmd struct {
	Session string `arg:"" optional:"" help:"Session name (default: scratch)"`
}

func (s *StatsCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	a, err := buildApp(cli, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	name := s.Session
	if name == "" {
		name = storage.DefaultSessionName
	}
	session, err := storage.GetSessionByName(ctx, a.Store.DB(), name)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no session named %q", name)
	}

	messages, err := storage.GetMessagesBySession(ctx, a.Store.DB(), session.ID)
	if err != nil {
		return err
	}

	fmt.Println(labelStyle.Render(session.Name))
	fmt.Printf("  messages:      %d\n", len(messages))
	fmt.Printf("  input tokens:  %d\n", session.InputTokens)
	fmt.Printf("  output tokens: %d\n", session.OutputTokens)
	fmt.Printf("  threshold:     %d\n", session.ContextThreshold)
	return nil
}
