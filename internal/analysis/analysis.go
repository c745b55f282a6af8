// Package analysis runs code metrics over the latest commit of a repository
// and its parent in the background, tracking per-repository job status.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/julianshen/commitpro/internal/metrics"
	"github.com/julianshen/commitpro/internal/store"
	"github.com/julianshen/commitpro/internal/workspace"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Final status messages.
const (
	MsgBoth         = "Analysis completed successfully for both commits."
	MsgLatestOnly   = "Analysis completed for latest commit only. Previous commit analysis failed."
	MsgPreviousOnly = "Analysis completed for previous commit only. Latest commit analysis failed."
	MsgNeither      = "Analysis failed for both commits. Could not generate metrics."
	MsgInterrupted  = "Analysis interrupted: the service stopped before it finished."
)

var (
	// ErrNotGitURL is returned when Start is given a local path.
	ErrNotGitURL = errors.New("analysis currently only supports Git URLs, not local paths")
	// ErrInvalidResultName is returned for result names containing path syntax.
	ErrInvalidResultName = errors.New("invalid result file name")
	// ErrForbidden is returned when a result name resolves outside the output directory.
	ErrForbidden = errors.New("result path escapes output directory")
	// ErrResultNotFound is returned when a result file does not exist.
	ErrResultNotFound = errors.New("result file not found")
	// ErrQueueFull is returned when too many jobs are waiting for a worker.
	ErrQueueFull = errors.New("analysis queue is full")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("analysis service closed")
)

// queueSize bounds how many jobs may wait for a free worker.
const queueSize = 64

// JobStatus is what clients poll.
type JobStatus struct {
	Status      Status   `json:"status" yaml:"status"`
	Message     string   `json:"message" yaml:"message"`
	OutputFiles []string `json:"outputFiles" yaml:"output_files"`
}

var idUnsafe = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// ID derives the job id of a repository URL.
func ID(repoURL string) string {
	id := strings.TrimPrefix(repoURL, "https://")
	if id == repoURL {
		id = strings.TrimPrefix(repoURL, "http://")
	}
	return idUnsafe.ReplaceAllString(id, "_")
}

// MetricsRunner produces a metrics report for a checked out source tree.
type MetricsRunner interface {
	Run(ctx context.Context, srcDir string, opts metrics.Options) (*metrics.Report, error)
}

// JobStore persists job status.
type JobStore interface {
	SaveJob(ctx context.Context, j store.Job) error
	GetJob(ctx context.Context, id string) (*store.Job, error)
	ListJobs(ctx context.Context) ([]store.Job, error)
}

// Options configure a Service.
type Options struct {
	OutputDir string
	Workers   int
	Logger    *slog.Logger
}

// Service schedules analysis jobs on a bounded worker pool.
type Service struct {
	ws        *workspace.Manager
	metrics   MetricsRunner
	jobs      JobStore
	outputDir string
	logger    *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	pool    *pool.Pool
	queue   chan string
	pending sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	statuses map[string]*JobStatus
}

// NewService creates a Service. jobs may be nil to keep statuses in memory
// only.
func NewService(ws *workspace.Manager, m MetricsRunner, jobs JobStore, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	outDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		outDir = opts.OutputDir
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		ws:        ws,
		metrics:   m,
		jobs:      jobs,
		outputDir: outDir,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		pool:      pool.New().WithMaxGoroutines(opts.Workers),
		queue:     make(chan string, queueSize),
		statuses:  make(map[string]*JobStatus),
	}
	for i := 0; i < opts.Workers; i++ {
		s.pool.Go(s.worker)
	}
	return s
}

func (s *Service) worker() {
	for repoURL := range s.queue {
		if s.ctx.Err() != nil {
			s.fail(s.ctx, ID(repoURL), repoURL, s.ctx.Err())
		} else {
			s.Run(s.ctx, repoURL)
		}
		s.pending.Done()
	}
}

// OutputDir returns the absolute directory result files are written to.
func (s *Service) OutputDir() string {
	return s.outputDir
}

// Start queues an analysis of repoURL and returns its job id. A job already
// running for the same repository is not started twice.
func (s *Service) Start(ctx context.Context, repoURL string) (string, error) {
	repoURL = strings.TrimSpace(repoURL)
	if !workspace.IsRemote(repoURL) {
		return "", ErrNotGitURL
	}
	id := ID(repoURL)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if st, ok := s.statuses[id]; ok && (st.Status == StatusRunning || st.Status == StatusPending) {
		s.mu.Unlock()
		s.logger.Info("analysis already in progress", "id", id)
		return id, nil
	}
	s.pending.Add(1)
	select {
	case s.queue <- repoURL:
	default:
		s.pending.Done()
		s.mu.Unlock()
		return "", ErrQueueFull
	}
	s.statuses[id] = &JobStatus{Status: StatusPending, Message: "Queued for analysis."}
	s.mu.Unlock()
	s.persist(ctx, id, repoURL)
	return id, nil
}

// Wait blocks until every queued job has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Close cancels running jobs and waits for the workers to exit. It is safe
// to call more than once.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.cancel()
	s.pool.Wait()
}

// RecoverInterrupted marks persisted PENDING and RUNNING jobs as FAILED and
// returns how many it changed. Only the process that owns the queue should
// call it, before accepting work; a second process sharing the store would
// otherwise fail jobs that are still running elsewhere.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	if s.jobs == nil {
		return 0, nil
	}
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing jobs: %w", err)
	}
	n := 0
	for _, j := range jobs {
		if Status(j.Status) != StatusPending && Status(j.Status) != StatusRunning {
			continue
		}
		s.mu.Lock()
		if _, live := s.statuses[j.ID]; live {
			s.mu.Unlock()
			continue
		}
		s.statuses[j.ID] = &JobStatus{Status: StatusFailed, Message: MsgInterrupted, OutputFiles: j.OutputFiles}
		s.mu.Unlock()
		s.persist(ctx, j.ID, j.RepoURL)
		n++
	}
	if n > 0 {
		s.logger.Warn("marked interrupted analyses as failed", "count", n)
	}
	return n, nil
}

// Status returns the current status of the job for repoURL. Unknown jobs are
// PENDING.
func (s *Service) Status(ctx context.Context, repoURL string) JobStatus {
	id := ID(strings.TrimSpace(repoURL))
	s.mu.Lock()
	st, ok := s.statuses[id]
	if ok {
		cp := *st
		cp.OutputFiles = append([]string(nil), st.OutputFiles...)
		s.mu.Unlock()
		return cp
	}
	s.mu.Unlock()

	if s.jobs != nil {
		j, err := s.jobs.GetJob(ctx, id)
		if err == nil {
			return JobStatus{Status: Status(j.Status), Message: j.Message, OutputFiles: j.OutputFiles}
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("loading job status failed", "id", id, "error", err)
		}
	}
	return JobStatus{Status: StatusPending}
}

// update records an intermediate status. A FAILED job stays FAILED until a
// final status is set.
func (s *Service) update(ctx context.Context, id, repoURL string, status Status, message string) {
	s.mu.Lock()
	st, ok := s.statuses[id]
	switch {
	case !ok:
		s.statuses[id] = &JobStatus{Status: status, Message: message}
	case st.Status == StatusFailed && status != StatusFailed:
		s.mu.Unlock()
		return
	default:
		st.Status = status
		st.Message = message
	}
	s.mu.Unlock()
	s.logger.Info("analysis status updated", "id", id, "status", status, "message", message)
	s.persist(ctx, id, repoURL)
}

// finish overwrites the job status with its final outcome.
func (s *Service) finish(ctx context.Context, id, repoURL string, previousOK, latestOK bool, files []string) JobStatus {
	final := JobStatus{Status: StatusCompleted, OutputFiles: files}
	switch {
	case previousOK && latestOK:
		final.Message = MsgBoth
	case latestOK:
		final.Message = MsgLatestOnly
	case previousOK:
		final.Message = MsgPreviousOnly
	default:
		final.Status = StatusFailed
		final.Message = MsgNeither
	}
	s.mu.Lock()
	s.statuses[id] = &final
	s.mu.Unlock()
	s.logger.Info("analysis finished", "id", id, "status", final.Status, "message", final.Message, "files", files)
	s.persist(ctx, id, repoURL)
	return final
}

func (s *Service) fail(ctx context.Context, id, repoURL string, err error) JobStatus {
	st := JobStatus{Status: StatusFailed, Message: "Critical error: " + err.Error()}
	s.mu.Lock()
	s.statuses[id] = &st
	s.mu.Unlock()
	s.logger.Error("analysis failed", "id", id, "error", err)
	s.persist(ctx, id, repoURL)
	return st
}

func (s *Service) persist(ctx context.Context, id, repoURL string) {
	if s.jobs == nil {
		return
	}
	s.mu.Lock()
	st := *s.statuses[id]
	s.mu.Unlock()
	// Status writes outlive a cancelled job context.
	ctx = context.WithoutCancel(ctx)
	if err := s.jobs.SaveJob(ctx, store.Job{
		ID:          id,
		RepoURL:     repoURL,
		Status:      string(st.Status),
		Message:     st.Message,
		OutputFiles: st.OutputFiles,
	}); err != nil {
		s.logger.Warn("persisting job status failed", "id", id, "error", err)
	}
}

// Run analyzes repoURL synchronously and returns the final status.
func (s *Service) Run(ctx context.Context, repoURL string) (final JobStatus) {
	id := ID(repoURL)
	defer func() {
		if r := recover(); r != nil {
			final = s.fail(ctx, id, repoURL, fmt.Errorf("panic: %v", r))
		}
	}()
	s.update(ctx, id, repoURL, StatusRunning, "Initializing analysis...")

	co, err := s.ws.Prepare(ctx, repoURL)
	if err != nil {
		return s.fail(ctx, id, repoURL, err)
	}
	defer func() {
		if err := os.RemoveAll(metrics.DBPath(co.Dir, "")); err != nil {
			s.logger.Warn("removing understand database failed", "dir", co.Dir, "error", err)
		}
		if err := co.Cleanup(); err != nil {
			s.logger.Warn("checkout cleanup failed", "dir", co.Dir, "error", err)
		}
	}()

	git := co.Git()
	head, err := git.RevParse(ctx, "HEAD")
	if err != nil {
		return s.fail(ctx, id, repoURL, err)
	}
	parent, hasParent, err := git.Parent(ctx)
	if err != nil {
		return s.fail(ctx, id, repoURL, err)
	}
	if !hasParent {
		s.logger.Info("commit has no parent", "commit", head)
		parent = ""
	}

	var files []string
	previousOK := s.analyzeCommit(ctx, id, repoURL, co, parent, "_previous", &files)
	latestOK := s.analyzeCommit(ctx, id, repoURL, co, head, "_latest", &files)
	return s.finish(ctx, id, repoURL, previousOK, latestOK, files)
}

func (s *Service) analyzeCommit(ctx context.Context, id, repoURL string, co *workspace.Checkout, commit, suffix string, files *[]string) bool {
	if commit == "" {
		s.logger.Info("skipping analysis of missing commit", "suffix", suffix)
		return suffix == "_previous"
	}
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	s.update(ctx, id, repoURL, StatusRunning, "Analyzing commits...")

	if err := co.Git().Checkout(ctx, commit); err != nil {
		s.update(ctx, id, repoURL, StatusRunning, "Commit "+short+" analysis failed: "+err.Error())
		return false
	}
	report, err := s.metrics.Run(ctx, co.Dir, metrics.Options{})
	if err != nil {
		s.update(ctx, id, repoURL, StatusRunning, "Commit "+short+" analysis failed: "+err.Error())
		return false
	}

	name := filepath.Base(co.Dir) + suffix + ".json"
	if err := report.WriteFile(filepath.Join(s.outputDir, name)); err != nil {
		s.logger.Error("saving metrics failed", "commit", commit, "error", err)
		s.update(ctx, id, repoURL, StatusFailed, "Failed to save results for commit "+short)
		return false
	}
	*files = append(*files, name)
	return true
}

// ResultPath resolves a result file name inside the output directory.
func (s *Service) ResultPath(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidResultName
	}
	p := filepath.Clean(filepath.Join(s.outputDir, name))
	rel, err := filepath.Rel(s.outputDir, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrForbidden
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrResultNotFound
	}
	return p, nil
}
