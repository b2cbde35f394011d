package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/parley-chat/parley/src/config"
	"github.com/parley-chat/parley/src/engine"
	"github.com/parley-chat/parley/src/imaging"
)

// ChatCmd sends one message and streams the reply to stdout.
type ChatCmd struct {
	Text    []string `arg:"" help:"The message to send"`
	Session string   `short:"s" help:"Session name (default: scratch)"`
	Attach  []string `short:"a" help:"Image file to attach (repeatable)"`
	Model   string   `short:"m" help:"Override the configured model"`
	NoTools bool     `help:"Disable tools for this message"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	logger := createChatLogger(cli.LogLevel)

	a, err := buildChatApp(cli, logger, func(cfg *config.Config) {
		if c.Model != "" {
			cfg.Model = c.Model
		}
		if c.NoTools {
			cfg.EnableTools = false
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	session, err := resolveSession(ctx, a.Store.DB(), c.Session, a.Config.DefaultThreshold)
	if err != nil {
		return err
	}

	loader := imaging.NewLoader(afero.NewOsFs(), a.Config.MaxImageBytes)
	var attachments []imaging.Attachment
	for _, path := range c.Attach {
		att, err := loader.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load attachment %s: %w", path, err)
		}
		attachments = append(attachments, *att)
	}

	_, err = a.Engine.Send(ctx, session, strings.Join(c.Text, " "), attachments, engine.Callbacks{
		OnText: func(delta string) {
			fmt.Print(delta)
		},
		OnToolStart: func(name string) {
			fmt.Println(toolStyle.Render(fmt.Sprintf("⚙ running %s...", name)))
		},
	})
	if err != nil {
		return err
	}
	fmt.Println()
	return nil
}
