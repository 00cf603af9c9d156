package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smartxerox/internal/chat"
)

const (
	heroTitle    = "Smart Xerox Shop — AI-Powered Business Analytics Assistant"
	placeholder  = "Ask something like: What is the revenue of 2025?"
	thinkingText = "Analyzing Smart Xerox data..."
)

// ChatPort is the TUI-facing subset of the orchestrator.
type ChatPort interface {
	Handle(ctx context.Context, question string) (string, error)
	Transcript() *chat.Transcript
}

// Settings is shown under the header.
type Settings struct {
	Model       string
	Temperature float64
	Embedder    string
	Store       string
	Summary     string
}

func (s Settings) String() string {
	return fmt.Sprintf("Model: %s · Temperature: %.2f · Architecture: RAG + deterministic analytics (%s embeddings, %s index)",
		s.Model, s.Temperature, s.Embedder, s.Store)
}

// answerMsg reports that a question finished.
type answerMsg struct {
	err error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	chat     ChatPort
	settings Settings
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool
	pending  string
	sent     int
	status   string
	ready    bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, port ChatPort, settings Settings) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		ctx:      ctx,
		chat:     port,
		settings: settings,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. Press Enter to ask, Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 3 + 1 + ih + 1 // header lines, spacer, input, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		m.pending = ""
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Ready."
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.pending = q
			m.sent = m.chat.Transcript().Len()
			m.status = thinkingText
			m.input.Reset()
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the question off the render loop. The orchestrator records both
// turns, so the result only carries the error.
func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.chat.Handle(m.ctx, q)
		return answerMsg{err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the header, conversation, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := heroStyle.Render(heroTitle)
	settings := dimStyle.Render(m.settings.String())
	summary := dimStyle.Render(m.settings.Summary)
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + settings + "\n" + summary + "\n" +
		chatBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderTranscript() string {
	msgs := m.chat.Transcript().Messages()
	if len(msgs) == 0 && !m.busy {
		return dimStyle.Render("No questions yet.")
	}
	width := max(10, m.viewport.Width-2)
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(renderMessage(msg, width))
		b.WriteString("\n\n")
	}
	// Handle may not have recorded the question yet.
	if m.busy && len(msgs) == m.sent {
		b.WriteString(renderMessage(chat.Message{Role: chat.RoleUser, Content: m.pending}, width))
		b.WriteString("\n\n")
	}
	if m.busy {
		b.WriteString(dimStyle.Render(thinkingText))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(msg chat.Message, width int) string {
	label, style := "You", userStyle
	if msg.Role == chat.RoleAssistant {
		label, style = "Assistant", assistantStyle
		if msg.Failed {
			style = failedStyle
		}
	}
	body := lipgloss.NewStyle().Width(width).Render(msg.Content)
	return style.Render(label) + "\n" + body
}

var (
	heroStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
