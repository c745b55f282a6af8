package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/metrics"
	"github.com/julianshen/commitpro/internal/output"
	"github.com/julianshen/commitpro/internal/runner"
	"github.com/julianshen/commitpro/internal/summarizer"
	"github.com/julianshen/commitpro/internal/tui"
)

func summarizeRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize-repo <repo>",
		Short: "Describe a repository with aider",
		Long: `Clone (or use in place) a repository, ask aider for a brief project summary
and print the extracted excerpt. <repo> is a Git URL or a local path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			asJSON, _ := cmd.Flags().GetBool("json")

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "summarize-repo", func(ctx context.Context) (*output.Result, error) {
				res := &output.Result{Subject: args[0]}
				s, err := a.summarizer()
				if err != nil {
					return res, err
				}
				sum, err := s.Summarize(ctx, args[0], summarizer.Options{JSON: asJSON})
				if err != nil {
					return res, err
				}
				res.Body = sum.Excerpt
				res.Data = sum
				if sum.Truncated {
					res.Add("truncated", "true")
				}
				return res, nil
			})
		},
	}
	cmd.Flags().Bool("json", false, "ask for a JSON formatted summary")
	return cmd
}

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics <src_dir>",
		Short: "Export code metrics with SciTools Understand",
		Long: `Create (unless present) an Understand database next to <src_dir>, analyze it,
export the configured metrics and print a summary. Use --out to keep the
full report as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			lang, _ := cmd.Flags().GetString("language")
			dbName, _ := cmd.Flags().GetString("db-name")
			outPath, _ := cmd.Flags().GetString("out")
			top, _ := cmd.Flags().GetInt("top")

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "metrics", func(ctx context.Context) (*output.Result, error) {
				res := &output.Result{Subject: args[0]}
				report, err := a.analyzer().Run(ctx, args[0], metrics.Options{Language: lang, DBName: dbName})
				if err != nil {
					return res, err
				}
				res.Add("database", metrics.DBPath(args[0], dbName)).
					Add("project metrics", strconv.Itoa(len(report.ProjectMetrics))).
					Add("classes", strconv.Itoa(len(report.ClassMetrics))).
					Add("functions", strconv.Itoa(len(report.CyclomaticMetrics)))
				if outPath != "" {
					if err := report.WriteFile(outPath); err != nil {
						return res, err
					}
					res.Add("report", outPath)
				}
				res.Body = complexityTable(report.TopComplex(top))
				res.Data = report
				return res, nil
			})
		},
	}
	cmd.Flags().StringP("language", "l", "", "language for und create (default from config)")
	cmd.Flags().String("db-name", "", "Understand database name (default: source directory name)")
	cmd.Flags().String("out", "", "write the full report to this JSON file")
	cmd.Flags().Int("top", 10, "number of most complex functions to list")
	return cmd
}

func complexityTable(entities []metrics.Entity) string {
	if len(entities) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Most complex functions\n\n| Function | Cyclomatic | File |\n|---|---|---|\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "| %s | %g | %s |\n", e.Name, e.Metrics[metrics.CyclomaticMetric], e.File)
	}
	return b.String()
}

// addServerFlags registers the flags shared by analyze and status.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "commitpro API address (default: the configured server addr)")
	cmd.Flags().Bool("local", false, "run in this process instead of asking a server")
	cmd.Flags().Duration("interval", tui.DefaultPollInterval, "status poll interval")
}

func serverAddr(cmd *cobra.Command, a *app) string {
	if s, _ := cmd.Flags().GetString("server"); s != "" {
		return s
	}
	return a.cfg.Server.Addr
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <repo>",
		Short: "Compare metrics of the latest commit and its parent",
		Long: `Queue a metrics analysis of the latest commit and its parent on a running
"commitpro serve". --wait polls until the job finishes; --local runs the
analysis in this process and always waits.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}
	cmd.Flags().Bool("wait", false, "wait for the analysis to finish")
	addServerFlags(cmd)
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	repo := strings.TrimSpace(args[0])
	wait, _ := cmd.Flags().GetBool("wait")
	local, _ := cmd.Flags().GetBool("local")
	interval, _ := cmd.Flags().GetDuration("interval")

	r, err := a.runner()
	if err != nil {
		return err
	}
	return r.Run(cmd.Context(), "analyze", func(ctx context.Context) (*output.Result, error) {
		res := &output.Result{Subject: repo}
		res.Add("id", analysis.ID(repo))

		var poll tui.StatusFunc
		if local {
			svc, err := a.analysis(ctx)
			if err != nil {
				return res, err
			}
			if _, err := svc.Start(ctx, repo); err != nil {
				return res, err
			}
			poll = func(ctx context.Context) analysis.JobStatus { return svc.Status(ctx, repo) }
			wait = true
		} else {
			client := newAPIClient(serverAddr(cmd, a))
			ack, err := client.Analyze(ctx, repo)
			if err != nil {
				return res, err
			}
			res.Body = ack
			if !wait {
				return res, nil
			}
			poll = func(ctx context.Context) analysis.JobStatus {
				st, err := client.Status(ctx, repo)
				if err != nil {
					a.logger.Warn("status poll failed", "error", err)
					return analysis.JobStatus{Status: analysis.StatusRunning, Message: err.Error()}
				}
				return st
			}
		}

		st, err := waitForJob(ctx, cmd.ErrOrStderr(), repo, poll, interval)
		describeJob(res, st)
		if err != nil {
			return res, err
		}
		if code := runner.ExitCodeFromStatus(st.Status); code != runner.ExitOK {
			return res, &runner.ExitError{Code: code}
		}
		return res, nil
	})
}

// waitForJob shows a spinner on interactive terminals and polls quietly
// otherwise.
func waitForJob(ctx context.Context, w io.Writer, label string, poll tui.StatusFunc, interval time.Duration) (analysis.JobStatus, error) {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) && !quiet {
		return tui.Wait(ctx, f, label, poll, interval)
	}
	return tui.Poll(ctx, poll, interval)
}

func describeJob(res *output.Result, st analysis.JobStatus) {
	res.Add("status", string(st.Status))
	if st.Message != "" {
		res.Add("message", st.Message)
	}
	for _, f := range st.OutputFiles {
		res.Add("result", f)
	}
	res.Data = st
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <repo>",
		Short: "Show the analysis status of a repository",
		Long: `Print the status of the analysis job for <repo>. Exits 0 when completed,
1 when failed and 2 while pending or running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			repo := strings.TrimSpace(args[0])
			local, _ := cmd.Flags().GetBool("local")

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "status", func(ctx context.Context) (*output.Result, error) {
				res := &output.Result{Subject: repo}
				res.Add("id", analysis.ID(repo))

				var st analysis.JobStatus
				if local {
					svc, err := a.analysis(ctx)
					if err != nil {
						return res, err
					}
					st = svc.Status(ctx, repo)
				} else {
					st, err = newAPIClient(serverAddr(cmd, a)).Status(ctx, repo)
					if err != nil {
						return res, err
					}
				}
				describeJob(res, st)
				if code := runner.ExitCodeFromStatus(st.Status); code != runner.ExitOK {
					return res, &runner.ExitError{Code: code}
				}
				return res, nil
			})
		},
	}
	addServerFlags(cmd)
	return cmd
}
