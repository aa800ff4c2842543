package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	shellapi "github.com/devflow/devflow/internal/domains/shell/api"
	shellapp "github.com/devflow/devflow/internal/domains/shell/app"
	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#059669"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	inputBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#10B981")).Padding(0, 1)
)

const keyHints = "enter ask · esc stop · ctrl+y paste selection · /copy N · /clear · // escapes / · ctrl+c quit"

// changedMsg tells the model the shell state moved; it re-reads a snapshot.
type changedMsg struct{}

type submitDoneMsg struct {
	res shellapp.SubmitResult
	err error
}

type statusMsg string

// Model is the bubbletea chat view over the shell API.
type Model struct {
	ctx   context.Context
	shell shellapi.API
	bus   ports.SelectionBus

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width, height int
	ready         bool

	loading bool
	status  string
	errText string

	// pending is the prompt in flight; a failed reply puts it back in the input.
	pending string

	// shellInput is the last input value seen in a snapshot; a different value
	// means a selection arrived and replaces what is typed.
	shellInput string
}

func NewModel(ctx context.Context, shell shellapi.API, bus ports.SelectionBus) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask DevFlow..."
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	return Model{
		ctx:      ctx,
		shell:    shell,
		bus:      bus,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, func() tea.Msg { return changedMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-8, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.shell.Cancel()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.loading {
				m.shell.Cancel()
				m.status = "stopping..."
			}
			return m, nil
		case tea.KeyCtrlY:
			return m, m.captureSelection()
		case tea.KeyCtrlL:
			return m, m.clear()
		case tea.KeyEnter:
			return m.handleEnter()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case changedMsg:
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.loading = false
		m.status = ""
		if msg.err != nil && errors.KindOf(msg.err) != errors.KindCanceled {
			m.errText = describeError(msg.err)
			if m.input.Value() == "" {
				m.input.SetValue(m.pending)
				m.input.CursorEnd()
			}
		}
		m.pending = ""
		m.refresh()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	trimmed := strings.TrimSpace(value)

	if isCommand(trimmed) {
		m.input.SetValue("")
		return m, m.runCommand(trimmed)
	}
	if m.loading || trimmed == "" {
		return m, nil
	}
	// "//" sends a prompt that would otherwise read as a command.
	if strings.HasPrefix(trimmed, "//") {
		value = strings.TrimPrefix(strings.TrimLeft(value, " \t"), "/")
	}

	m.loading = true
	m.pending = value
	m.errText = ""
	m.status = ""
	m.input.SetValue("")
	shell, ctx := m.shell, m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := shell.Submit(ctx, shellapp.SubmitRequest{Prompt: value})
		return submitDoneMsg{res: res, err: err}
	})
}

func (m Model) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/clear":
		return m.clear()
	case "/copy":
		if len(fields) != 2 {
			return status("usage: /copy N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return status("usage: /copy N")
		}
		shell := m.shell
		return func() tea.Msg {
			if _, err := shell.CopyCodeBlock(shellapp.CopyCodeBlockRequest{N: n}); err != nil {
				return statusMsg(describeError(err))
			}
			return statusMsg(fmt.Sprintf("copied code block %d", n))
		}
	}
	return nil
}

// isCommand reports whether line is one of the shell commands. Any other
// input, including text that merely starts with "/", is a prompt.
func isCommand(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "/clear", "/copy":
		return true
	}
	return false
}

func (m Model) clear() tea.Cmd {
	shell := m.shell
	return func() tea.Msg {
		if err := shell.Clear(); err != nil {
			return statusMsg(describeError(err))
		}
		return statusMsg("conversation cleared")
	}
}

func (m Model) captureSelection() tea.Cmd {
	shell, bus := m.shell, m.bus
	return func() tea.Msg {
		if err := shell.CaptureSelection(bus); err != nil {
			return statusMsg(describeError(err))
		}
		return nil
	}
}

// refresh pulls a snapshot and re-renders the transcript.
func (m *Model) refresh() {
	snap := m.shell.Snapshot()
	if snap.Input != m.shellInput {
		m.shellInput = snap.Input
		if snap.Input != "" {
			m.input.SetValue(snap.Input)
			m.input.CursorEnd()
		}
	}
	if !m.ready {
		return
	}

	res, err := m.shell.Render(shellapp.RenderRequest{Turns: snap.Turns, Width: max(m.width-4, 20)})
	if err != nil {
		m.errText = describeError(err)
		return
	}
	content := res.Text
	if len(snap.Turns) == 0 {
		content = hintStyle.Render("Ask a coding question, or press ctrl+y to paste a selection.")
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("DevFlow"))
	b.WriteString("  ")
	b.WriteString(hintStyle.Render(keyHints))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " " + statusStyle.Render("streaming"))
	case m.errText != "":
		b.WriteString(errorStyle.Render(m.errText))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(inputBorder.Render(m.input.View()))
	return b.String()
}

func status(s string) tea.Cmd {
	return func() tea.Msg { return statusMsg(s) }
}

// describeError turns an error into the one line shown under the transcript.
func describeError(err error) string {
	msg := errors.MessageOf(err)
	switch errors.KindOf(err) {
	case errors.KindMidStream:
		return "reply cut off: " + msg + " (partial text kept, press enter to resubmit)"
	case errors.KindAdmission:
		return "relay refused the request: " + msg
	case errors.KindUpstream:
		return "relay error: " + msg + " (press enter to resubmit)"
	default:
		return msg
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, shell shellapi.API, bus ports.SelectionBus) error {
	p := tea.NewProgram(NewModel(ctx, shell, bus), tea.WithAltScreen(), tea.WithContext(ctx))

	// Send from a new goroutine: OnChange may fire inside Update.
	shell.OnChange(func() { go p.Send(changedMsg{}) })
	defer shell.OnChange(nil)

	unsubscribe := shell.WatchSelection(bus)
	defer unsubscribe()

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
