package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/narrator-dev/narrator/internal/domain"
	"github.com/narrator-dev/narrator/internal/engine"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#bae6fd"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#bbf7d0"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	dropStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a")).
			Italic(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))
)

// logLine is one entry in the scrolling event log: an admitted utterance,
// a drop, or a command acknowledgement.
type logLine struct {
	style lipgloss.Style
	text  string
}

type tickMsg time.Time

// model is the narratordemo dashboard's Bubble Tea state.
type model struct {
	eng      *engine.Engine
	sinkKind string
	input    textinput.Model
	lines    []logLine
	width    int
	quitting bool
}

func newModel(eng *engine.Engine, sinkKind string) model {
	ti := textinput.New()
	ti.Prompt = "fault> "
	ti.PromptStyle = promptStyle
	ti.Placeholder = `message, or "Kind: message", or :enable/:disable/:clear/:test`
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	return model{
		eng:      eng,
		sinkKind: sinkKind,
		input:    ti,
		lines: []logLine{
			{style: hintStyle, text: "type a fault message and press enter; :help for commands"},
		},
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

func (m *model) appendLine(style lipgloss.Style, format string, args ...any) {
	m.lines = append(m.lines, logLine{style: style, text: fmt.Sprintf(format, args...)})
	const maxLines = 200
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			v := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if v != "" {
				m.handleSubmit(v)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		const promptLen = 7
		if msg.Width > promptLen {
			m.input.Width = msg.Width - promptLen
		}
		return m, nil

	case tickMsg:
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit dispatches a line of user input: either a colon-command
// (:enable, :disable, :clear, :test, :help) or a fault to narrate, in the
// form "message" or "Kind: message".
func (m *model) handleSubmit(v string) {
	if strings.HasPrefix(v, ":") {
		m.handleCommand(v)
		return
	}

	kind := domain.KindError
	message := v
	if idx := strings.Index(v, ":"); idx > 0 && idx < 20 {
		candidate := strings.TrimSpace(v[:idx])
		if isLikelyKind(candidate) {
			kind = candidate
			message = strings.TrimSpace(v[idx+1:])
		}
	}

	before := m.eng.GetStatus().Pending
	m.eng.HandleFault(domain.Fault{Message: message, Kind: kind})
	after := m.eng.GetStatus()

	if after.Pending > before || after.InFlight {
		m.appendLine(okStyle, "admitted: [%s] %s", kind, message)
	} else {
		m.appendLine(dropStyle, "dropped (cooldown/filter/dedup): [%s] %s", kind, message)
	}
}

func isLikelyKind(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}

func (m *model) handleCommand(v string) {
	switch strings.ToLower(v) {
	case ":enable":
		m.eng.Enable()
		m.appendLine(warnStyle, "engine enabled")
	case ":disable":
		m.eng.Disable()
		m.appendLine(warnStyle, "engine disabled, queue cleared")
	case ":clear":
		m.eng.ClearQueue()
		m.appendLine(warnStyle, "queue cleared")
	case ":test":
		m.eng.Test("")
		m.appendLine(okStyle, "test utterance enqueued")
	case ":help":
		m.appendLine(hintStyle, "commands: :enable :disable :clear :test :help, ctrl+c to quit")
	default:
		m.appendLine(dropStyle, "unknown command: %s", v)
	}
}

func (m model) View() string {
	status := m.eng.GetStatus()

	var b strings.Builder
	b.WriteString(titleStyle.Render("narrator — runtime error-narration engine"))
	b.WriteString("\n\n")

	b.WriteString(statusLine("session", m.eng.SessionID()))
	b.WriteString(statusLine("sink", m.sinkKind))
	b.WriteString(statusLine("enabled", fmt.Sprintf("%v", status.Enabled)))
	b.WriteString(statusLine("sink ready", fmt.Sprintf("%v", status.SinkReady)))
	b.WriteString(statusLine("in flight", fmt.Sprintf("%v", status.InFlight)))
	b.WriteString(statusLine("pending", fmt.Sprintf("%d", status.Pending)))
	b.WriteString(statusLine("cooldown", fmt.Sprintf("%dms", status.Config.CooldownMs)))
	b.WriteString("\n")

	start := 0
	const visibleLines = 12
	if len(m.lines) > visibleLines {
		start = len(m.lines) - visibleLines
	}
	for _, l := range m.lines[start:] {
		b.WriteString("  " + l.style.Render(l.text) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("ctrl+c to quit"))

	return b.String()
}

func statusLine(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-12s", label)) + value + "\n"
}
