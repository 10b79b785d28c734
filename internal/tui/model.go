package tui

import (
	"shiwake/internal/tui/common"
	"shiwake/internal/tui/messages"
	"shiwake/internal/tui/views"
	"shiwake/pkg/types"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxRecent is how many outcomes the view keeps on screen.
const maxRecent = 8

// Run is the part of a batch the viewer needs. *organize.Run satisfies it.
type Run interface {
	ID() string
	DestinationRoot() string
	Total() int
	Events() <-chan types.Progress
	Cancel()
}

// Model shows the progress of a single run.
type Model struct {
	run      Run
	progress progress.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	latest    types.Progress
	recent    []types.FileResult
	succeeded int
	failed    int
	phase     common.Phase
}

// New returns a model that follows run.
func New(run Run) *Model {
	return &Model{
		run:      run,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keys:     defaultKeys(),
		latest:   types.Progress{RunID: run.ID(), TotalFiles: run.Total()},
		phase:    common.Running,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.run.Events()), m.spinner.Tick)
}

func waitForEvent(events <-chan types.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return messages.StreamClosedMsg{}
		}
		return messages.ProgressMsg{Progress: p}
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			if m.phase == common.Running {
				m.phase = common.Cancelling
				m.keys.Cancel.SetEnabled(false)
				m.run.Cancel()
			}
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		w := msg.Width - 12
		if w > 60 {
			w = 60
		}
		if w < 10 {
			w = 10
		}
		m.progress.Width = w
		m.help.Width = msg.Width
		return m, nil

	case messages.ProgressMsg:
		m.apply(msg.Progress)
		return m, waitForEvent(m.run.Events())

	case messages.StreamClosedMsg:
		m.finish()
		return m, nil

	case spinner.TickMsg:
		if m.phase == common.Finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(p types.Progress) {
	m.latest = p
	if r := p.CurrentResult; r != nil {
		if r.Success {
			m.succeeded++
		} else {
			m.failed++
		}
		m.recent = append(m.recent, *r)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}
	}
	if p.Finished {
		m.finish()
	}
}

func (m *Model) finish() {
	m.phase = common.Finished
	m.keys.Cancel.SetEnabled(false)
	m.keys.Quit.SetEnabled(true)
}

// View implements tea.Model
func (m *Model) View() string {
	return views.RenderMainView(m)
}

// RunID implements common.ModelReader
func (m *Model) RunID() string { return m.run.ID() }

// DestinationRoot implements common.ModelReader
func (m *Model) DestinationRoot() string { return m.run.DestinationRoot() }

// Phase implements common.ModelReader
func (m *Model) Phase() common.Phase { return m.phase }

// Progress implements common.ModelReader
func (m *Model) Progress() types.Progress { return m.latest }

// Recent implements common.ModelReader
func (m *Model) Recent() []types.FileResult { return m.recent }

// Counts implements common.ModelReader
func (m *Model) Counts() (int, int) { return m.succeeded, m.failed }

// ProgressBar implements common.ModelReader
func (m *Model) ProgressBar() string {
	if m.latest.TotalFiles == 0 {
		return m.progress.ViewAs(1)
	}
	return m.progress.ViewAs(float64(m.latest.ProcessedFiles) / float64(m.latest.TotalFiles))
}

// Spinner implements common.ModelReader
func (m *Model) Spinner() string { return m.spinner.View() }

// HelpView implements common.ModelReader
func (m *Model) HelpView() string { return m.help.View(m.keys) }

// Cancelled reports whether the run stopped early.
func (m *Model) Cancelled() bool { return m.latest.Cancelled }
