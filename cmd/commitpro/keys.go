package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/julianshen/commitpro/internal/commitsource"
	"github.com/julianshen/commitpro/internal/credentials"
	"github.com/julianshen/commitpro/internal/output"
	"github.com/julianshen/commitpro/internal/tui"
)

var errNoKeys = errors.New("nothing to set: pass --github and/or --llm")

// keysCmd returns the "keys" command with register, set and show
// subcommands.
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage app registrations and their API keys",
	}
	cmd.AddCommand(keysRegisterCmd())
	cmd.AddCommand(keysSetCmd())
	cmd.AddCommand(keysShowCmd())
	return cmd
}

func keysRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register a new app and print its uuid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "keys register", func(ctx context.Context) (*output.Result, error) {
				creds, err := a.credentials(ctx)
				if err != nil {
					return nil, err
				}
				id, err := creds.Register(ctx)
				if err != nil {
					return nil, err
				}
				res := &output.Result{Data: map[string]string{"uuid": id}}
				res.Add("uuid", id)
				return res, nil
			})
		},
	}
}

func keysSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the GitHub token and LLM key of an app",
		Long: `Store keys for an app. Without --github or --llm on an interactive terminal
a form asks for them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			app := appFlag(cmd)
			github, _ := cmd.Flags().GetString("github")
			llm, _ := cmd.Flags().GetString("llm")
			verify, _ := cmd.Flags().GetBool("verify")

			if github == "" && llm == "" && term.IsTerminal(int(os.Stdin.Fd())) {
				form := tui.NewKeysForm(app, "", "")
				if err := form.Run(); err != nil {
					return err
				}
				app, github, llm = form.App, form.GitHub, form.LLM
			}

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "keys set", func(ctx context.Context) (*output.Result, error) {
				res := &output.Result{}
				res.Add("uuid", app)
				if github == "" && llm == "" {
					return res, errNoKeys
				}
				if err := tui.ValidateGitHubKey(github); err != nil {
					return res, err
				}
				if err := tui.ValidateLLMKey(llm); err != nil {
					return res, err
				}
				creds, err := a.credentials(ctx)
				if err != nil {
					return res, err
				}
				if github != "" {
					if err := creds.SetGitHubKey(ctx, app, github); err != nil {
						return res, err
					}
					res.Add("github", credentials.Mask(github))
					if verify {
						login, err := commitsource.NewGitHub(github).Whoami(ctx)
						if err != nil {
							return res, err
						}
						res.Add("github user", login)
					}
				}
				if llm != "" {
					if err := creds.SetLLMKey(ctx, app, llm); err != nil {
						return res, err
					}
					res.Add("llm", credentials.Mask(llm))
				}
				return res, nil
			})
		},
	}
	cmd.Flags().String("app", "", "app uuid (default: $"+appEnv+")")
	cmd.Flags().String("github", "", "GitHub personal access token")
	cmd.Flags().String("llm", "", "OpenAI API key")
	cmd.Flags().Bool("verify", false, "check the GitHub token against the API")
	return cmd
}

func keysShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the keys stored for an app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			app := appFlag(cmd)
			reveal, _ := cmd.Flags().GetBool("reveal")

			r, err := a.runner()
			if err != nil {
				return err
			}
			return r.Run(cmd.Context(), "keys show", func(ctx context.Context) (*output.Result, error) {
				res := &output.Result{}
				res.Add("uuid", app)
				creds, err := a.credentials(ctx)
				if err != nil {
					return res, err
				}
				keys, err := creds.Keys(ctx, app)
				if err != nil {
					return res, err
				}
				if !reveal {
					keys.GitHub = credentials.Mask(keys.GitHub)
					keys.LLM = credentials.Mask(keys.LLM)
				}
				res.Add("github", keys.GitHub).Add("llm", keys.LLM)
				res.Data = keys
				return res, nil
			})
		},
	}
	cmd.Flags().String("app", "", "app uuid (default: $"+appEnv+")")
	cmd.Flags().Bool("reveal", false, "print keys unmasked")
	return cmd
}
