package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/julianshen/commitpro/internal/commitsummary"
	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/output"
	"github.com/julianshen/commitpro/internal/query"
	"github.com/julianshen/commitpro/internal/runner"
)

// appEnv names the variable holding the default app uuid.
const appEnv = "COMMITPRO_APP"

func appFlag(cmd *cobra.Command) string {
	if app, _ := cmd.Flags().GetString("app"); app != "" {
		return app
	}
	return os.Getenv(appEnv)
}

func commitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <repo_url> <commit_id>",
		Short: "Write a structured message for a commit",
		Long: `Detect the refactorings of a commit with RefactoringMiner and ask the LLM
for a structured commit message. Keys come from the registered app given by
--app or $` + appEnv + `.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			original, _ := cmd.Flags().GetString("original")
			req := commitsummary.Request{
				URL:      args[0],
				CommitID: args[1],
				Original: original,
				AppID:    appFlag(cmd),
			}

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "commit", func(ctx context.Context) (*output.Result, error) {
				res := &output.Result{Subject: args[1]}
				svc, err := a.commits(ctx)
				if err != nil {
					return res, err
				}
				sum, err := svc.Summarize(ctx, req)
				if err != nil {
					return res, err
				}
				res.Subject = sum.CommitID
				res.Body = sum.Message
				res.Data = sum
				res.Add("repository", sum.URL).Add("cached", strconv.FormatBool(sum.Cached))
				if !sum.Refactorings.Empty() {
					res.Add("refactorings", strings.Join(sum.Refactorings.Types(), ", "))
				}
				return res, nil
			})
		},
	}
	cmd.Flags().String("app", "", "registered app uuid (default: $"+appEnv+")")
	cmd.Flags().String("original", "", "the message the author wrote")
	return cmd
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask the LLM a question",
		Long: `Answer a question, optionally with context retrieved from the configured
data file (--rag). A commit page URL as the query is scraped and summarized.
The query may also come from --file or stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			useRAG, _ := cmd.Flags().GetBool("rag")
			file, _ := cmd.Flags().GetString("file")

			var arg string
			if len(args) > 0 {
				arg = args[0]
			}
			text, err := runner.ResolveInput(arg, file, runner.PipedStdin())
			if err != nil {
				return err
			}

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "ask", func(ctx context.Context) (*output.Result, error) {
				res := &output.Result{}
				llm := a.cfg.LLM
				key, err := config.ResolveAPIKey(llm.APIKeySource, llm.APIKey, config.EnvVarFor(llm.Provider), "")
				if err != nil {
					return res, err
				}
				answer, err := a.questions(ctx).Answer(ctx, query.Request{Query: text, UseRAG: useRAG}, key)
				if err != nil {
					return res, err
				}
				res.Body = answer
				res.Add("model", llm.Model).Add("rag", strconv.FormatBool(useRAG))
				return res, nil
			})
		},
	}
	cmd.Flags().Bool("rag", false, "augment the question with retrieved context")
	cmd.Flags().String("file", "", "read the query from a file")
	return cmd
}
