package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianshen/commitpro/internal/analysis"
)

// DefaultPollInterval is how often a waiting client asks for job status.
const DefaultPollInterval = 2 * time.Second

// StatusFunc returns the current status of the job being waited on.
type StatusFunc func(ctx context.Context) analysis.JobStatus

// statusMsg carries a polled status back into Update.
type statusMsg analysis.JobStatus

// pollMsg asks for the next status poll.
type pollMsg struct{}

// WaitModel is a Bubble Tea model that shows a spinner until an analysis
// job completes or fails.
type WaitModel struct {
	ctx      context.Context
	poll     StatusFunc
	interval time.Duration
	label    string
	spinner  spinner.Model
	status   analysis.JobStatus
	done     bool
	aborted  bool
}

// Ensure WaitModel satisfies the tea.Model interface at compile time.
var _ tea.Model = (*WaitModel)(nil)

// NewWaitModel creates a WaitModel polling poll every interval.
func NewWaitModel(ctx context.Context, label string, poll StatusFunc, interval time.Duration) *WaitModel {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyStyle
	return &WaitModel{
		ctx:      ctx,
		poll:     poll,
		interval: interval,
		label:    label,
		spinner:  sp,
		status:   analysis.JobStatus{Status: analysis.StatusPending},
	}
}

// Terminal reports whether s is a final job state.
func Terminal(s analysis.Status) bool {
	return s == analysis.StatusCompleted || s == analysis.StatusFailed
}

func (m *WaitModel) check() tea.Cmd {
	return func() tea.Msg {
		return statusMsg(m.poll(m.ctx))
	}
}

// Init implements tea.Model.
func (m *WaitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.check())
}

// Update implements tea.Model.
func (m *WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = analysis.JobStatus(msg)
		if Terminal(m.status.Status) {
			m.done = true
			return m, tea.Quit
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
	case pollMsg:
		return m, m.check()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *WaitModel) View() string {
	if m.done {
		return JobLine(m.status) + "\n"
	}
	if m.aborted {
		return mutedStyle.Render("Stopped waiting; the analysis keeps running.") + "\n"
	}
	return fmt.Sprintf("%s %s  %s\n", m.spinner.View(), m.label, JobLine(m.status))
}

// Status returns the last polled status.
func (m *WaitModel) Status() analysis.JobStatus { return m.status }

// Aborted reports whether the user stopped waiting.
func (m *WaitModel) Aborted() bool { return m.aborted }

// Wait runs a WaitModel on out until the job finishes, the user quits or ctx
// is cancelled.
func Wait(ctx context.Context, out io.Writer, label string, poll StatusFunc, interval time.Duration) (analysis.JobStatus, error) {
	m := NewWaitModel(ctx, label, poll, interval)
	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(out))
	if _, err := prog.Run(); err != nil {
		return m.Status(), fmt.Errorf("running status display: %w", err)
	}
	return m.Status(), nil
}

// Poll calls poll every interval until the job finishes or ctx is done. It is
// the non-interactive counterpart of Wait.
func Poll(ctx context.Context, poll StatusFunc, interval time.Duration) (analysis.JobStatus, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		st := poll(ctx)
		if Terminal(st.Status) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-t.C:
		}
	}
}
