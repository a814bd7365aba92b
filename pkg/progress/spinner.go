package progress

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerReporter shows one terminal spinner per running task.
type SpinnerReporter struct {
	issueList
	out io.Writer
}

// NewSpinnerReporter creates a reporter rendering to out.
func NewSpinnerReporter(out io.Writer) *SpinnerReporter {
	return &SpinnerReporter{out: out}
}

// StartTask starts a spinner labelled name.
func (r *SpinnerReporter) StartTask(name string) Task {
	m := newSpinnerModel(name)
	p := tea.NewProgram(m, tea.WithOutput(r.out), tea.WithInput(nil))

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		if _, err := p.Run(); err != nil {
			// Spinner failures never affect the stage itself.
			_ = err
		}
	}()

	return &spinnerTask{program: p, exited: exited}
}

type spinnerTask struct {
	taskState
	program *tea.Program
	exited  chan struct{}
}

func (t *spinnerTask) Abort() { t.abort() }

func (t *spinnerTask) End() {
	t.finish(func(aborted bool) {
		t.program.Send(spinnerDoneMsg{aborted: aborted})
		<-t.exited
	})
}

// spinnerModel is the bubbletea model for the spinner
type spinnerModel struct {
	spinner spinner.Model
	message string
	done    bool
	aborted bool
}

type spinnerDoneMsg struct {
	aborted bool
}

func newSpinnerModel(message string) *spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &spinnerModel{
		spinner: s,
		message: message,
	}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerDoneMsg:
		m.done = true
		m.aborted = msg.aborted
		return m, tea.Quit
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done {
		if m.aborted {
			return fmt.Sprintf("✖ %s\n", m.message)
		}
		return fmt.Sprintf("✔ %s\n", m.message)
	}
	return fmt.Sprintf("%s %s...", m.spinner.View(), m.message)
}
