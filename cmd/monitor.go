package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/monitor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	findStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	crashStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	docStyle   = lipgloss.NewStyle().Margin(1, 2)
)

type tickMsg time.Time

type doneMsg struct{ err error }

type monitorModel struct {
	mon      *monitor.Monitor
	spinner  spinner.Model
	snap     monitor.Snapshot
	interval time.Duration
	quitting bool
	done     bool
	err      error
}

func newMonitorModel(mon *monitor.Monitor, interval time.Duration) monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = findStyle
	return monitorModel{mon: mon, spinner: s, interval: interval, snap: mon.Snapshot()}
}

func (m monitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		m.snap = m.mon.Snapshot()
		return m, m.tick()

	case doneMsg:
		m.done = true
		m.err = msg.err
		m.snap = m.mon.Snapshot()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder

	status := m.spinner.View() + " fuzzing"
	switch {
	case m.err != nil:
		status = crashStyle.Render("stopped: " + m.err.Error())
	case m.done:
		status = "done"
	case m.quitting:
		status = "stopping..."
	}
	b.WriteString(titleStyle.Render("mutafuzz") + "  " + status + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	s := m.snap
	row("elapsed", s.Elapsed.Round(time.Second).String())
	row("execs", fmt.Sprintf("%d (%.0f/s)", s.Executions, s.ExecsPerSec))
	row("corpus", fmt.Sprintf("%d", s.CorpusSize))
	row("finds", findStyle.Render(fmt.Sprintf("%d", s.Finds)))
	solutions := fmt.Sprintf("%d", s.Solutions)
	if s.Solutions > 0 {
		solutions = crashStyle.Render(solutions)
	}
	row("solutions", solutions)
	if !s.LastFind.IsZero() {
		row("last find", time.Since(s.LastFind).Round(time.Second).String()+" ago")
	}

	if len(s.Instances) > 1 {
		b.WriteString("\n")
		for _, inst := range s.Instances {
			row(inst.Name, fmt.Sprintf("execs %d  corpus %d  solutions %d", inst.Executions, inst.CorpusSize, inst.Solutions))
		}
	}

	b.WriteString("\nq: quit\n")
	return docStyle.Render(b.String())
}

// runWithTUI fuzzes in the background while the monitor owns the terminal.
// Quitting the monitor stops the campaign.
func runWithTUI(ctx context.Context, mon *monitor.Monitor, interval time.Duration, run func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newMonitorModel(mon, interval))
	errc := make(chan error, 1)
	go func() {
		err := run(ctx)
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	err := <-errc
	if uiErr != nil {
		return fmt.Errorf("monitor failed: %w", uiErr)
	}
	return err
}
