// Package toolcheck reports whether the external command line tools the
// service drives are installed in a usable version.
package toolcheck

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sourcegraph/conc/iter"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/logging"
	"github.com/julianshen/commitpro/internal/metrics"
	"github.com/julianshen/commitpro/internal/procrun"
)

const versionTimeout = 15 * time.Second

var versionRe = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?)`)

// Tool describes one external executable. A nil VersionArgs only checks that
// the binary exists.
type Tool struct {
	Name        string
	Binary      string
	VersionArgs []string
	Constraint  string // e.g. ">= 0.50.0"; empty accepts any version
	Optional    bool
}

// Status is the outcome of checking one Tool.
type Status struct {
	Name       string `json:"name" yaml:"name"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Found      bool   `json:"found" yaml:"found"`
	OK         bool   `json:"ok" yaml:"ok"`
	Optional   bool   `json:"optional" yaml:"optional"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ParseVersion returns the first version number in out.
func ParseVersion(out string) (*semver.Version, error) {
	m := versionRe.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("no version number in %q", strings.TrimSpace(out))
	}
	return semver.NewVersion(m[1])
}

// Check locates t.Binary, runs it with t.VersionArgs and evaluates the
// version against t.Constraint.
func Check(ctx context.Context, t Tool) Status {
	st := Status{Name: t.Name, Constraint: t.Constraint, Optional: t.Optional}
	path, err := procrun.LookPath(t.Binary)
	if err != nil {
		st.Message = err.Error()
		return st
	}
	st.Path = path
	st.Found = true
	if t.VersionArgs == nil {
		st.OK = true
		return st
	}

	runner := &procrun.Runner{Logger: logging.Discard()}
	res, err := runner.Run(ctx, procrun.Command{Name: path, Args: t.VersionArgs, Timeout: versionTimeout})
	if err != nil {
		st.Message = err.Error()
		return st
	}
	v, err := ParseVersion(res.Stdout + "\n" + res.Stderr)
	if err != nil {
		// Some tools print a build number instead of a version.
		st.OK = t.Constraint == ""
		st.Message = err.Error()
		return st
	}
	st.Version = v.String()

	if t.Constraint == "" {
		st.OK = true
		return st
	}
	c, err := semver.NewConstraint(t.Constraint)
	if err != nil {
		st.Message = fmt.Sprintf("invalid version constraint %q: %v", t.Constraint, err)
		return st
	}
	if ok, errs := c.Validate(v); !ok {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		st.Message = strings.Join(msgs, "; ")
		return st
	}
	st.OK = true
	return st
}

// CheckAll checks every tool concurrently, keeping the input order.
func CheckAll(ctx context.Context, tools []Tool) []Status {
	return iter.Map(tools, func(t *Tool) Status {
		return Check(ctx, *t)
	})
}

// Ready reports whether every required tool passed.
func Ready(statuses []Status) bool {
	for _, s := range statuses {
		if !s.OK && !s.Optional {
			return false
		}
	}
	return true
}

// DefaultTools lists the tools cfg refers to.
func DefaultTools(cfg *config.Config) []Tool {
	und := cfg.Understand.Binary
	if und == "" {
		und = metrics.FindExecutable(cfg.Understand.Candidates)
	}
	tools := []Tool{
		{Name: "git", Binary: "git", VersionArgs: []string{"--version"}, Constraint: ">= 2.0.0"},
		{Name: "aider", Binary: orDefault(cfg.Summarizer.Binary, "aider"), VersionArgs: []string{"--version"}, Constraint: cfg.Summarizer.MinVersion},
		{Name: "und", Binary: und, VersionArgs: []string{"version"}},
		{Name: "RefactoringMiner", Binary: orDefault(cfg.Refactoring.Binary, "RefactoringMiner")},
	}
	if cfg.Scrape.Mode == "browser" {
		tools = append(tools, Tool{Name: "chrome", Binary: "google-chrome", VersionArgs: []string{"--version"}, Optional: true})
	}
	return tools
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
