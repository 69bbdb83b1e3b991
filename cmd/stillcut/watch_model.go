package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stillcut/internal/queue"
)

const (
	watchInterval   = 500 * time.Millisecond
	watchRecentJobs = 5
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	watchInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	watchWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	watchBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// jobLister is the slice of queue.Store the watch view reads.
type jobLister interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
}

type watchTickMsg time.Time

type watchJobsMsg struct {
	jobs []*queue.Job
	err  error
}

type watchModel struct {
	ctx   context.Context
	store jobLister
	bar   progress.Model
	jobs  []*queue.Job
	err   error
}

func newWatchModel(ctx context.Context, store jobLister) watchModel {
	return watchModel{
		ctx:   ctx,
		store: store,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.poll()
}

func (m watchModel) poll() tea.Cmd {
	return func() tea.Msg {
		jobs, err := m.store.List(m.ctx)
		return watchJobsMsg{jobs: jobs, err: err}
	}
}

func watchTick() tea.Cmd {
	return tea.Tick(watchInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-20, 80))
	case watchTickMsg:
		return m, m.poll()
	case watchJobsMsg:
		m.jobs, m.err = msg.jobs, msg.err
		return m, watchTick()
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("stillcut queue"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(watchErrorStyle.Render("read queue: " + m.err.Error()))
		b.WriteString("\n")
	}

	running, queued, finished := splitJobs(m.jobs)
	if len(running) == 0 {
		b.WriteString(watchInfoStyle.Render("No job is rendering"))
		b.WriteString("\n")
	}
	for _, job := range running {
		var box strings.Builder
		fmt.Fprintf(&box, "Job #%d  %s\n", job.ID, jobSource(job))
		fmt.Fprintf(&box, "%s %s\n", m.bar.ViewAs(job.ProgressPercent/100), formatGroupCounts(job))
		if job.ProgressMessage != "" {
			box.WriteString(watchInfoStyle.Render(job.ProgressMessage))
		}
		b.WriteString(watchBoxStyle.Render(strings.TrimRight(box.String(), "\n")))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%d job(s) queued\n", len(queued))
	if len(finished) > 0 {
		b.WriteString("\nRecently finished\n")
		for _, job := range finished {
			fmt.Fprintf(&b, "  #%d %s %s\n", job.ID, styleStatus(job.Status), jobSource(job))
		}
	}
	b.WriteString(watchInfoStyle.Render("\nq to quit"))
	b.WriteString("\n")
	return b.String()
}

func styleStatus(status queue.Status) string {
	switch jobStatusKind(status) {
	case statusOK:
		return watchOKStyle.Render(status.Label())
	case statusWarn:
		return watchWarnStyle.Render(status.Label())
	case statusError:
		return watchErrorStyle.Render(status.Label())
	default:
		return status.Label()
	}
}

// splitJobs partitions jobs by state. Finished jobs are newest first and
// capped at watchRecentJobs.
func splitJobs(jobs []*queue.Job) (running, queued, finished []*queue.Job) {
	for _, job := range jobs {
		switch {
		case job.Status == queue.StatusRunning:
			running = append(running, job)
		case job.Status == queue.StatusQueued:
			queued = append(queued, job)
		case job.Status.Terminal():
			finished = append(finished, job)
		}
	}
	for i, j := 0, len(finished)-1; i < j; i, j = i+1, j-1 {
		finished[i], finished[j] = finished[j], finished[i]
	}
	if len(finished) > watchRecentJobs {
		finished = finished[:watchRecentJobs]
	}
	return running, queued, finished
}

// renderWatchSnapshot is the plain-text view used when stdout is not a terminal.
func renderWatchSnapshot(jobs []*queue.Job) string {
	running, queued, finished := splitJobs(jobs)
	var b strings.Builder
	if len(running) == 0 {
		b.WriteString("No job is rendering\n")
	}
	for _, job := range running {
		fmt.Fprintf(&b, "Job #%d %s: %s, groups %s", job.ID, jobSource(job), formatPercent(job), formatGroupCounts(job))
		if job.ProgressMessage != "" {
			fmt.Fprintf(&b, " (%s)", job.ProgressMessage)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d job(s) queued\n", len(queued))
	for _, job := range finished {
		fmt.Fprintf(&b, "#%d %s %s\n", job.ID, job.Status.Label(), jobSource(job))
	}
	return b.String()
}
