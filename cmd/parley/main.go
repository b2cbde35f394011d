package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the top-level command structure.
type CLI struct {
	APIKey   string `env:"ANTHROPIC_API_KEY" help:"Anthropic API key"`
	Config   string `help:"Config file path (defaults to XDG config dir)"`
	BaseURL  string `help:"Custom API base URL"`
	LogLevel string `default:"warn" help:"Log level (debug, info, warn, error)"`

	Chat      ChatCmd      `cmd:"" help:"Send a message and stream the reply"`
	Session   SessionCmd   `cmd:"" help:"Manage sessions"`
	Grade     GradeCmd     `cmd:"" help:"Grade messages for context inclusion"`
	Threshold ThresholdCmd `cmd:"" help:"Show, set, or cycle a session's context threshold"`
	Stats     StatsCmd     `cmd:"" help:"Show a session's token usage"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("parley"),
		kong.Description("Terminal chat client for the Anthropic API with graded, replayable history"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(1)
	}
}
