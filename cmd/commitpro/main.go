package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/julianshen/commitpro/internal/runner"

	// Register providers via init() side effects.
	_ "github.com/julianshen/commitpro/internal/provider/anthropic"
	_ "github.com/julianshen/commitpro/internal/provider/openai"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
	outputFlag string
	verbosity  int
	quiet      bool
)

func versionString() string {
	return fmt.Sprintf("commitpro %s (commit: %s, built: %s)", version, commit, date)
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "commitpro",
		Short: "Commit summaries and repository metrics",
		Long: `commitpro summarizes commits with an LLM, describes repositories with aider
and tracks code metrics with SciTools Understand. Run "commitpro serve" for
the HTTP API used by the browser extension and dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/commitpro/config.toml)")
	root.PersistentFlags().StringVarP(&outputFlag, "output", "o", "markdown", "output format: markdown, json, yaml")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "silence logs")

	root.AddCommand(
		serveCmd(),
		summarizeRepoCmd(),
		metricsCmd(),
		analyzeCmd(),
		statusCmd(),
		askCmd(),
		commitCmd(),
		keysCmd(),
		doctorCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Command results already carry their error in the formatted output.
		var exitErr *runner.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(runner.ExitCode(err))
	}
}
