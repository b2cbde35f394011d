package main

import (
	"context"
	"fmt"

	"github.com/parley-chat/parley/src/storage"
)

// ThresholdCmd shows, sets, or cycles a session's context threshold.
// With no value the threshold cycles 0→1→…→5→0, the quick way to
// tighten or reopen the replay window from the keyboard.
type ThresholdCmd struct {
	Session string `arg:"" help:"Session name"`
	Value   int    `arg:"" optional:"" default:"-1" help:"Threshold (0-5); omit to cycle"`
	Show    bool   `help:"Print the current threshold without changing it"`
}

func (t *ThresholdCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	a, err := buildApp(cli, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	session, err := storage.GetSessionByName(ctx, a.Store.DB(), t.Session)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no session named %q", t.Session)
	}

	switch {
	case t.Show:
		fmt.Printf("%s threshold is %d\n", t.Session, session.ContextThreshold)
	case t.Value >= 0:
		if err := storage.SetThreshold(ctx, a.Store.DB(), session.ID, t.Value); err != nil {
			return err
		}
		fmt.Printf("%s threshold set to %d\n", t.Session, t.Value)
	default:
		next, err := storage.CycleThreshold(ctx, a.Store.DB(), session.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s threshold cycled to %d\n", t.Session, next)
	}
	return nil
}
