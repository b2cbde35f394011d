package main

import (
	"context"
	"fmt"

	"github.com/parley-chat/parley/src/storage"
)

// SessionCmd groups session management subcommands.
type SessionCmd struct {
	List   SessionListCmd   `cmd:"" help:"List sessions"`
	New    SessionNewCmd    `cmd:"" help:"Create a session"`
	Delete SessionDeleteCmd `cmd:"" help:"Delete a session and its messages"`
	Rename SessionRenameCmd `cmd:"" help:"Rename a session"`
}

type SessionListCmd struct{}

func (s *SessionListCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	a, err := buildApp(cli, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := storage.EnsureDefaultSession(ctx, a.Store.DB()); err != nil {
		return err
	}
	sessions, err := storage.ListSessions(ctx, a.Store.DB())
	if err != nil {
		return err
	}

	for _, s := range sessions {
		name := s.Name
		if s.IsDefault {
			name += faintStyle.Render(" (default)")
		}
		fmt.Printf("%s  threshold=%d  tokens=%d/%d\n", labelStyle.Render(name), s.ContextThreshold, s.InputTokens, s.OutputTokens)
	}
	return nil
}

type SessionNewCmd struct {
	Name      string `arg:"" help:"Session name"`
	Threshold int    `short:"t" default:"-1" help:"Context threshold (0-5, defaults to config)"`
}

func (s *SessionNewCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	a, err := buildApp(cli, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	threshold := s.Threshold
	if threshold < 0 {
		threshold = a.Config.DefaultThreshold
	}

	existing, err := storage.GetSessionByName(ctx, a.Store.DB(), s.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("session %q already exists", s.Name)
	}

	session := &storage.Session{Name: s.Name, ContextThreshold: threshold}
	if err := storage.CreateSession(ctx, a.Store.DB(), session); err != nil {
		return err
	}
	fmt.Printf("created session %s (threshold %d)\n", labelStyle.Render(session.Name), session.ContextThreshold)
	return nil
}

type SessionDeleteCmd struct {
	Name string `arg:"" help:"Session name"`
}

func (s *SessionDeleteCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	a, err := buildApp(cli, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	session, err := storage.GetSessionByName(ctx, a.Store.DB(), s.Name)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no session named %q", s.Name)
	}
	if err := storage.DeleteSession(ctx, a.Store.DB(), session.ID); err != nil {
		return err
	}
	fmt.Printf("deleted session %s\n", s.Name)
	return nil
}

type SessionRenameCmd struct {
	Name    string `arg:"" help:"Current session name"`
	NewName string `arg:"" help:"New session name"`
}

func (s *SessionRenameCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	a, err := buildApp(cli, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	session, err := storage.GetSessionByName(ctx, a.Store.DB(), s.Name)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no session named %q", s.Name)
	}
	if err := storage.RenameSession(ctx, a.Store.DB(), session.ID, s.NewName); err != nil {
		return err
	}
	fmt.Printf("renamed %s to %s\n", s.Name, s.NewName)
	return nil
}
