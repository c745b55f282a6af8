package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/julianshen/commitpro/internal/output"
	"github.com/julianshen/commitpro/internal/runner"
	"github.com/julianshen/commitpro/internal/toolcheck"
	"github.com/julianshen/commitpro/internal/tui"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the external tools commitpro drives",
		Long: `Look up git, aider, und and RefactoringMiner (and Chrome in browser scrape
mode), report their versions and check them against the required ranges.
Exits 1 when a required tool is missing or too old.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			statuses := toolcheck.CheckAll(cmd.Context(), toolcheck.DefaultTools(a.cfg))
			code := runner.ExitCodeFromTools(statuses)

			if outputFlag == "" || outputFlag == "markdown" || outputFlag == "md" {
				for _, st := range statuses {
					fmt.Fprintln(a.out, tui.ToolLine(st))
				}
				if code != runner.ExitOK {
					return &runner.ExitError{Code: code}
				}
				return nil
			}

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "doctor", func(context.Context) (*output.Result, error) {
				res := &output.Result{Data: statuses}
				for _, st := range statuses {
					detail := st.Version
					if !st.OK {
						detail = st.Message
					}
					res.Add(st.Name, detail)
				}
				if code != runner.ExitOK {
					return res, &runner.ExitError{Code: code}
				}
				return res, nil
			})
		},
	}
}
