package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages
type (
	progressMsg struct{ done, total int }
	finishedMsg struct{ err error }
)

// Model is the Bubble Tea model shown while a source is collected
type Model struct {
	label    string
	spinner  spinner.Model
	bar      progress.Model
	done     int
	total    int
	err      error
	finished bool
}

// NewModel creates a progress model for the source named label
func NewModel(label string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		label:   label,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.done = msg.done
		m.total = msg.total
		return m, nil

	case finishedMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// Percent is the completed share in [0, 1], 0 when the length is unknown
func (m Model) Percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return min(float64(m.done)/float64(m.total), 1)
}

// View renders the UI
func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n   %s\n\n", errorStyle.Render(m.err.Error()))
	}
	if m.finished {
		return fmt.Sprintf("\n   %s %s\n\n", titleStyle.Render(m.label), captionStyle.Render(fmt.Sprintf("%d frames", m.done)))
	}

	count := fmt.Sprintf("%d frames", m.done)
	if m.total > 0 {
		count = fmt.Sprintf("%d/%d frames", m.done, m.total)
	}
	return fmt.Sprintf("\n   %s %s\n\n   %s  %s\n\n",
		m.spinner.View(),
		titleStyle.Render(m.label),
		m.bar.ViewAs(m.Percent()),
		captionStyle.Render(count),
	)
}

// RunWithProgress runs work while showing a progress bar on out. work
// reports progress through the callback it is given. The error of work is
// returned.
func RunWithProgress(ctx context.Context, out io.Writer, label string, work func(Progress) error) error {
	p := tea.NewProgram(NewModel(label),
		tea.WithContext(ctx),
		tea.WithOutput(out),
		tea.WithInput(nil),
	)

	result := make(chan error, 1)
	go func() {
		err := work(func(done, total int) {
			p.Send(progressMsg{done, total})
		})
		result <- err
		p.Send(finishedMsg{err})
	}()

	if _, err := p.Run(); err != nil {
		slog.Debug("export: progress ui ended", "err", err)
	}
	return <-result
}

// LogProgress returns a Progress that logs every tenth of the way, for output
// that is not a terminal.
func LogProgress(log *slog.Logger, label string) Progress {
	last := -1
	return func(done, total int) {
		if total <= 0 {
			return
		}
		step := done * 10 / total
		if step == last {
			return
		}
		last = step
		log.Info("export: collecting", "source", label, "frames", done, "total", total)
	}
}
