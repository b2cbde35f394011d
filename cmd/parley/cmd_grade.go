package main

import (
	"context"
	"fmt"

	"github.com/parley-chat/parley/src/storage"
)

// GradeCmd grades messages. Without --message or --turn it bulk-grades
// every message in the session, the "keep everything" / "keep nothing"
// sweep.
type GradeCmd struct {
	Session string `arg:"" help:"Session name"`
	Value   int    `arg:"" help:"Grade (0-5; 0 means never replay)"`
	Message string `help:"Grade a single message by id"`
	Turn    string `help:"Grade a whole turn by id"`
}

func (g *GradeCmd) Run(cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	a, err := buildApp(cli, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	session, err := storage.GetSessionByName(ctx, a.Store.DB(), g.Session)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no session named %q", g.Session)
	}

	switch {
	case g.Message != "":
		if err := storage.SetMessageGrade(ctx, a.Store.DB(), g.Message, g.Value); err != nil {
			return err
		}
		fmt.Printf("graded message %s as %d\n", g.Message, g.Value)
	case g.Turn != "":
		if err := storage.SetTurnGrade(ctx, a.Store.DB(), g.Turn, g.Value); err != nil {
			return err
		}
		fmt.Printf("graded turn %s as %d\n", g.Turn, g.Value)
	default:
		if err := storage.SetSessionGrades(ctx, a.Store.DB(), session.ID, g.Value); err != nil {
			return err
		}
		fmt.Printf("graded all messages in %s as %d\n", g.Session, g.Value)
	}
	return nil
}
