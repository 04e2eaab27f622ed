package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/snoo/internal/app"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd(app.Run)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "snoo: %v\n", err)
		return 1
	}
	return 0
}

// newRootCmd builds the snoo command. runApp is called with the parsed
// options.
func newRootCmd(runApp func(context.Context, app.Options) error) *cobra.Command {
	var opts app.Options

	cmd := &cobra.Command{
		Use:   "snoo [subreddit]",
		Short: "Browse Reddit from the terminal",
		Long: `snoo browses subreddits, post listings and comment threads from the keyboard.

Content loads in the background; the screen never waits on the network.

Examples:
  snoo                 # Start on the subreddit directory
  snoo golang          # Open r/golang right away
  snoo --log-file -    # Run without a debug log`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.Subreddit != "" && opts.Subreddit != args[0] {
					return fmt.Errorf("subreddit given twice: %q and --sub %q", args[0], opts.Subreddit)
				}
				opts.Subreddit = args[0]
			}
			return runApp(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.config/snoo/config.toml)")
	flags.StringVar(&opts.PrefsPath, "prefs", "", "preferences file (default ~/.config/snoo/prefs.toml)")
	flags.StringVar(&opts.Subreddit, "sub", "", "subreddit to open at start")
	flags.StringVar(&opts.LogFile, "log-file", "", `debug log file, "-" disables (default from config)`)

	return cmd
}
