package main

import (
	"github.com/spf13/cobra"

	"github.com/julianshen/commitpro/internal/server"
	"github.com/julianshen/commitpro/internal/toolcheck"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the commit summary, question and analysis endpoints used by the
browser extension and the metrics dashboard.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		a.cfg.Server.Addr = addr
	}

	for _, st := range toolcheck.CheckAll(ctx, toolcheck.DefaultTools(a.cfg)) {
		if !st.OK && !st.Optional {
			a.logger.Warn("external tool not ready", "tool", st.Name, "detail", st.Message)
		}
	}

	creds, err := a.credentials(ctx)
	if err != nil {
		return err
	}
	commits, err := a.commits(ctx)
	if err != nil {
		return err
	}
	analyses, err := a.analysis(ctx)
	if err != nil {
		return err
	}
	if _, err := analyses.RecoverInterrupted(ctx); err != nil {
		a.logger.Warn("recovering interrupted analyses failed", "error", err)
	}
	deps := server.Deps{
		Credentials: creds,
		Commits:     commits,
		Questions:   a.questions(ctx),
		Analyses:    analyses,
	}
	if s, err := a.summarizer(); err == nil {
		deps.Summarizer = s
	} else {
		a.logger.Warn("repository summaries disabled", "error", err)
	}

	srv := server.New(deps, server.OptionsFromConfig(a.cfg.Server, a.logger))
	return srv.ListenAndServe(ctx)
}
