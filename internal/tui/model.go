// Package tui is the terminal chat client for the assistant.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Sender delivers one user message and returns the assistant's answer.
type Sender interface {
	Send(ctx context.Context, text string) (string, error)
}

type entry struct {
	user bool
	text string
}

type replyMsg struct {
	answer  string
	err     error
	elapsed time.Duration
}

// Model is the Bubble Tea model of the chat client.
type Model struct {
	sender   Sender
	timeout  time.Duration
	title    string
	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	waiting  bool
	ready    bool
}

// New creates the chat model. Each message is bounded by timeout.
func New(sender Sender, title string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Escribe tu pregunta y presiona Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		sender:   sender,
		timeout:  timeout,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Listo. Ctrl+C para salir.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		h := msg.Height - 2 - 1 - ih - bh - 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, h)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.entries = append(m.entries, entry{user: true, text: q})
			m.input.Reset()
			m.waiting = true
			m.status = "Pensando..."
			m.refresh()
			return m, m.send(q)
		}
	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.entries = append(m.entries, entry{text: msg.answer})
			m.status = fmt.Sprintf("Respuesta en %.1fs", msg.elapsed.Seconds())
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		start := time.Now()
		answer, err := m.sender.Send(ctx, text)
		return replyMsg{answer: answer, err: err, elapsed: time.Since(start)}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Cargando..."
	}
	header := titleStyle.Render(m.title)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return hintStyle.Render("Sin mensajes todavía.")
	}
	width := max(10, m.viewport.Width-2)
	blocks := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		label, style := assistantLabel, assistantStyle
		if e.user {
			label, style = userLabel, userStyle
		}
		blocks = append(blocks, style.Render(label)+"\n"+lipgloss.NewStyle().Width(width).Render(e.text))
	}
	return strings.Join(blocks, "\n\n")
}

// Transcript returns the plain conversation text, oldest first.
func (m Model) Transcript() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		label := assistantLabel
		if e.user {
			label = userLabel
		}
		out[i] = label + " " + e.text
	}
	return out
}

const (
	userLabel      = "Tú:"
	assistantLabel = "Asistente:"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
