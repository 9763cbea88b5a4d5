package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/quarryhq/quarry/pkg/installer"
)

// installEventMsg wraps an installer event for the bubbletea loop.
type installEventMsg installer.Event

// installDoneMsg signals that the install run finished.
type installDoneMsg struct{}

// taskLine is one in-flight package shown by the live view.
type taskLine struct {
	phase string
	label string
}

// installModel is the bubbletea model for the live install view.
type installModel struct {
	active    map[string]taskLine
	installed int
	skipped   int
	failed    int
	failures  []string
	height    int
	done      bool
}

func newInstallModel() installModel {
	return installModel{active: make(map[string]taskLine), height: 15}
}

func (m installModel) Init() tea.Cmd {
	return nil
}

func (m installModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 8
		if m.height < 5 {
			m.height = 5
		}
	case installEventMsg:
		e := installer.Event(msg)
		label := e.Key
		if e.Resolved != "" {
			label = e.Resolved
		}
		switch e.Kind {
		case installer.EventResolving, installer.EventInstalling:
			m.active[e.Key] = taskLine{phase: e.Kind.String(), label: label}
		case installer.EventInstalled:
			delete(m.active, e.Key)
			m.installed++
		case installer.EventSkipped:
			delete(m.active, e.Key)
			m.skipped++
		case installer.EventDuplicate:
			delete(m.active, e.Key)
		case installer.EventFailed:
			delete(m.active, e.Key)
			m.failed++
			m.failures = append(m.failures, fmt.Sprintf("%s: %v", label, e.Err))
		}
	case installDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m installModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Installing packages"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n\n")

	keys := make([]string, 0, len(m.active))
	for k := range m.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	shown := len(keys)
	if shown > m.height {
		shown = m.height
	}
	for _, k := range keys[:shown] {
		line := m.active[k]
		b.WriteString("  " + StyleHighlight.Render(line.phase) + " " + StyleValue.Render(line.label))
		b.WriteString("\n")
	}
	if rest := len(keys) - shown; rest > 0 {
		b.WriteString(StyleDim.Render(fmt.Sprintf("  +%d more", rest)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString("  " + StyleSuccess.Render(fmt.Sprintf("%d installed", m.installed)))
	b.WriteString(StyleDim.Render(" · "))
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d skipped", m.skipped)))
	b.WriteString(StyleDim.Render(" · "))
	if m.failed > 0 {
		b.WriteString(StyleError.Render(fmt.Sprintf("%d failed", m.failed)))
	} else {
		b.WriteString(StyleDim.Render("0 failed"))
	}
	b.WriteString("\n")

	for _, f := range m.failures {
		b.WriteString("  " + styleIconError.Render(iconError) + " " + StyleDim.Render(f))
		b.WriteString("\n")
	}

	return b.String()
}

// runLiveInstall drives an install run through the interactive
// progress view. The event stream replaces per-package log lines, so
// the installer's logger is silenced for the duration. Quitting the
// view cancels the run; the tasks it cuts short surface as failures
// in the report.
func runLiveInstall(ctx context.Context, inst *installer.Installer, roots map[string]string) (*installer.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inst.Logger = log.New(io.Discard)

	p := tea.NewProgram(newInstallModel())
	inst.OnEvent = func(e installer.Event) {
		p.Send(installEventMsg(e))
	}

	type outcome struct {
		report *installer.Report
		err    error
	}
	resCh := make(chan outcome, 1)
	go func() {
		report, err := inst.Install(ctx, roots)
		resCh <- outcome{report: report, err: err}
		p.Send(installDoneMsg{})
	}()

	_, runErr := p.Run()
	cancel()
	res := <-resCh
	if res.err != nil {
		return res.report, res.err
	}
	return res.report, runErr
}
