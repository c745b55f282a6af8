// Package metrics runs the SciTools Understand command line against a source
// tree and turns its CSV metrics export into a structured report.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/procrun"
)

// DefaultMetrics are requested when no list is configured.
var DefaultMetrics = []string{
	"CountLineCode",
	"CountClassCoupled",
	"PercentLackOfCohesion",
	"SumCyclomatic",
	"MaxInheritanceTree",
	"CountClassDerived",
	"Cyclomatic",
}

// ErrNoOutput is returned when und finishes without writing any metrics.
var ErrNoOutput = errors.New("understand produced no metrics")

// FindExecutable returns the first candidate that is a regular file, falling
// back to "und" resolved through PATH.
func FindExecutable(candidates []string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c
		}
	}
	if p, err := exec.LookPath("und"); err == nil {
		return p
	}
	return "und"
}

// StepError reports an und subcommand that exited non-zero.
type StepError struct {
	Step     string
	ExitCode int
	Output   string
}

func (e *StepError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 400 {
		out = out[:400] + "..."
	}
	return fmt.Sprintf("und %s failed (exit %d): %s", e.Step, e.ExitCode, out)
}

// Options tune a single Run.
type Options struct {
	Language string   // language passed to "und create"; defaults to the analyzer's
	DBName   string   // database base name; defaults to the source directory name
	Metrics  []string // overrides the configured metric list
}

// Analyzer drives und.
type Analyzer struct {
	binary   string
	language string
	metrics  []string
	timeout  time.Duration
	runner   *procrun.Runner
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer from the [understand] section.
func NewAnalyzer(cfg config.UnderstandConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	binary := cfg.Binary
	if binary == "" {
		binary = FindExecutable(cfg.Candidates)
	}
	lang := cfg.Languages
	if lang == "" {
		lang = "all"
	}
	m := cfg.Metrics
	if len(m) == 0 {
		m = DefaultMetrics
	}
	return &Analyzer{
		binary:   binary,
		language: lang,
		metrics:  m,
		timeout:  cfg.Timeout.Duration,
		runner:   &procrun.Runner{Logger: logger},
		logger:   logger,
	}
}

// Binary returns the und executable in use.
func (a *Analyzer) Binary() string {
	return a.binary
}

// DBPath returns where the database for srcDir lives: next to the source
// directory, named after dbName or the directory itself.
func DBPath(srcDir, dbName string) string {
	if dbName == "" {
		dbName = filepath.Base(srcDir)
	}
	return filepath.Join(filepath.Dir(srcDir), strings.TrimSuffix(dbName, ".und")+".und")
}

// Run creates (unless present) and analyzes an Understand database for
// srcDir, exports the metrics and parses them.
func (a *Analyzer) Run(ctx context.Context, srcDir string, opts Options) (*Report, error) {
	src, err := filepath.Abs(srcDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", srcDir, err)
	}
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("source directory not found or is not a directory: %s", src)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	lang := opts.Language
	if lang == "" {
		lang = a.language
	}
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = a.metrics
	}
	db := DBPath(src, opts.DBName)
	csvPath := strings.TrimSuffix(db, ".und") + "_metrics.csv"
	a.logger.Info("running understand", "src", src, "db", db, "language", lang)

	if _, err := os.Stat(db); err == nil {
		a.logger.Info("understand database exists, skipping creation", "db", db)
	} else {
		if err := a.step(ctx, "create", "-languages", lang, strings.TrimSuffix(db, ".und")); err != nil {
			return nil, err
		}
		if _, err := os.Stat(db); err != nil {
			return nil, fmt.Errorf("und create succeeded but database %s not found", db)
		}
	}

	if err := a.step(ctx, "add", src, db); err != nil {
		return nil, err
	}
	settings := append([]string{"settings", "-metrics"}, metrics...)
	settings = append(settings, "-metricsOutputFile", csvPath, db)
	if err := a.step(ctx, settings...); err != nil {
		return nil, err
	}
	if err := a.step(ctx, "analyze", db); err != nil {
		return nil, err
	}
	_ = os.Remove(csvPath)
	if err := a.step(ctx, "metrics", db); err != nil {
		return nil, err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoOutput
		}
		return nil, fmt.Errorf("opening metrics export: %w", err)
	}
	defer f.Close()

	report, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	a.logger.Info("understand metrics parsed",
		"project_metrics", len(report.ProjectMetrics),
		"classes", len(report.ClassMetrics),
		"functions", len(report.CyclomaticMetrics))
	return report, nil
}

func (a *Analyzer) step(ctx context.Context, args ...string) error {
	res, err := a.runner.Run(ctx, procrun.Command{Name: a.binary, Args: args})
	if err != nil {
		return fmt.Errorf("und %s: %w", args[0], err)
	}
	if !res.OK() {
		return &StepError{Step: args[0], ExitCode: res.ExitCode, Output: res.Combined()}
	}
	a.logger.Debug("und step finished", "step", args[0], "duration", res.Duration)
	return nil
}

// WriteFile stores the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing metrics report: %w", err)
	}
	return nil
}
