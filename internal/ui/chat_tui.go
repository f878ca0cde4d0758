package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// SendFunc delivers one user message and returns the agent's reply.
type SendFunc func(ctx context.Context, message string) (string, error)

// RunChat opens an interactive prompt bound to one thread until the user quits.
func RunChat(ctx context.Context, threadID string, send SendFunc) error {
	p := tea.NewProgram(newChatModel(ctx, threadID, send), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running chat: %w", err)
	}
	return nil
}

type chatLine struct {
	role string // "you", "agent" or "error"
	text string
}

type replyMsg struct {
	text string
	err  error
}

type chatModel struct {
	ctx      context.Context
	threadID string
	send     SendFunc

	input   textinput.Model
	spinner spinner.Model
	lines   []chatLine
	waiting bool
}

func newChatModel(ctx context.Context, threadID string, send SendFunc) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask something, /quit to leave"
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 72

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleSubtle

	return chatModel{ctx: ctx, threadID: threadID, send: send, input: ti, spinner: sp}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			switch text {
			case "":
				return m, nil
			case "/quit", "/exit":
				return m, tea.Quit
			}
			m.lines = append(m.lines, chatLine{role: "you", text: text})
			m.input.SetValue("")
			m.waiting = true
			return m, tea.Batch(m.spinner.Tick, m.sendCmd(text))
		}

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.lines = append(m.lines, chatLine{role: "error", text: msg.err.Error()})
		} else {
			m.lines = append(m.lines, chatLine{role: "agent", text: msg.text})
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.send(m.ctx, text)
		return replyMsg{text: reply, err: err}
	}
}

func (m chatModel) View() string {
	var sb strings.Builder
	sb.WriteString(StyleHeader.Render("deepagent chat") + StyleSubtle.Render(" thread "+m.threadID) + "\n\n")
	for _, l := range m.lines {
		switch l.role {
		case "you":
			sb.WriteString(StylePrefixUser.Render("you ") + l.text + "\n\n")
		case "agent":
			sb.WriteString(StylePrefixAgent.Render("agent ") + l.text + "\n\n")
		default:
			sb.WriteString(StylePrefixError.Render("error ") + l.text + "\n\n")
		}
	}
	if m.waiting {
		sb.WriteString(m.spinner.View() + StyleSubtle.Render(" thinking...") + "\n\n")
	}
	sb.WriteString(StyleInputBox.Render(m.input.View()) + "\n")
	sb.WriteString(StyleSubtle.Render("Enter to send • Esc to quit") + "\n")
	return sb.String()
}
