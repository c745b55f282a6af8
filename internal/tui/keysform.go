package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianshen/commitpro/internal/credentials"
)

// KeysForm wraps a Huh form for entering the keys stored for an app.
type KeysForm struct {
	form   *huh.Form
	App    string
	GitHub string
	LLM    string
}

// NewKeysForm creates a key entry form. Values prefill the inputs; app is
// only asked for when empty.
func NewKeysForm(app, github, llm string) *KeysForm {
	kf := &KeysForm{App: app, GitHub: github, LLM: llm}

	var fields []huh.Field
	if app == "" {
		fields = append(fields, huh.NewInput().
			Title("App UUID").
			Description("Returned by `commitpro keys register`.").
			Value(&kf.App).
			Validate(required("app uuid")))
	}
	fields = append(fields,
		huh.NewInput().
			Title("GitHub token").
			Placeholder("ghp_...").
			Value(&kf.GitHub).
			EchoMode(huh.EchoModePassword).
			Validate(ValidateGitHubKey),
		huh.NewInput().
			Title("LLM API key").
			Placeholder("sk-...").
			Value(&kf.LLM).
			EchoMode(huh.EchoModePassword).
			Validate(ValidateLLMKey),
	)

	kf.form = huh.NewForm(huh.NewGroup(fields...).Title("API keys"))
	return kf
}

// Form returns the underlying huh.Form.
func (k *KeysForm) Form() *huh.Form { return k.form }

// Run shows the form on the terminal until it is submitted or aborted.
func (k *KeysForm) Run() error {
	if err := k.form.Run(); err != nil {
		return err
	}
	k.App = strings.TrimSpace(k.App)
	k.GitHub = strings.TrimSpace(k.GitHub)
	k.LLM = strings.TrimSpace(k.LLM)
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(name + " is required")
		}
		return nil
	}
}

// ValidateGitHubKey accepts an empty value (left unchanged) or a token of a
// known GitHub format.
func ValidateGitHubKey(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || credentials.ValidGitHubKey(s) {
		return nil
	}
	return errors.New("not a GitHub token")
}

// ValidateLLMKey accepts an empty value (left unchanged) or an OpenAI style key.
func ValidateLLMKey(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || credentials.ValidOpenAIKey(s) {
		return nil
	}
	return errors.New("not an OpenAI API key")
}
