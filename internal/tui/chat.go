// internal/tui/chat.go
// Package tui provides the interactive query console. It talks to a running
// docquery server over the HTTP API rather than touching the pipeline
// directly, so it exercises exactly what API callers see.
package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type querySource struct {
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Relevance  float64 `json:"relevance"`
}

type queryResponse struct {
	Answer  string        `json:"answer"`
	Sources []querySource `json:"sources"`
	Error   string        `json:"error"`
}

// answerMsg carries one completed query round trip back into the model.
type answerMsg struct {
	response queryResponse
	err      error
}

type model struct {
	serverURL string
	userID    string
	client    *http.Client

	textArea   textarea.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript strings.Builder
	isLoading  bool
	width      int
	height     int
}

func initialModel(serverURL, userID string, timeout time.Duration) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.Focus()
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(100, 5)

	return &model{
		serverURL: strings.TrimRight(serverURL, "/"),
		userID:    userID,
		client:    &http.Client{Timeout: timeout},
		textArea:  ta,
		viewport:  vp,
		spinner:   s,
	}
}

// Init starts the spinner animation.
func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			query := strings.TrimSpace(m.textArea.Value())
			if query == "" || m.isLoading {
				return m, nil
			}
			m.textArea.Reset()
			m.isLoading = true
			m.appendLine(questionStyle.Render("You: ") + query)
			cmds = append(cmds, m.spinner.Tick, m.queryCmd(query))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.textArea.SetWidth(msg.Width - 2)

	case answerMsg:
		m.isLoading = false
		if msg.err != nil {
			m.appendLine(errorStyle.Render("error: " + msg.err.Error()))
			break
		}
		m.appendLine(answerStyle.Render(msg.response.Answer))
		for _, src := range msg.response.Sources {
			m.appendLine(sourceStyle.Render(fmt.Sprintf("  [%s chunk %d, relevance %.2f]", src.Filename, src.ChunkIndex, src.Relevance)))
		}
		m.appendLine("")
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	m.textArea, cmd = m.textArea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.isLoading {
		b.WriteString(m.spinner.View() + " thinking...\n")
	} else {
		b.WriteString(m.textArea.View() + "\n")
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf("tenant: %s | server: %s | esc to quit", m.userID, m.serverURL)))
	return b.String()
}

func (m *model) appendLine(line string) {
	m.transcript.WriteString(line + "\n")
	m.viewport.SetContent(m.transcript.String())
	m.viewport.GotoBottom()
}

// queryCmd posts the question to the server off the UI loop.
func (m *model) queryCmd(query string) tea.Cmd {
	return func() tea.Msg {
		payload, err := json.Marshal(map[string]string{"query": query, "user_id": m.userID})
		if err != nil {
			return answerMsg{err: err}
		}
		resp, err := m.client.Post(m.serverURL+"/api/v1/query", "application/json", bytes.NewReader(payload))
		if err != nil {
			return answerMsg{err: err}
		}
		defer resp.Body.Close()

		var parsed queryResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return answerMsg{err: fmt.Errorf("parse server response: %w", err)}
		}
		if resp.StatusCode != http.StatusOK {
			if parsed.Error != "" {
				return answerMsg{err: fmt.Errorf("%s", parsed.Error)}
			}
			return answerMsg{err: fmt.Errorf("server returned %s", resp.Status)}
		}
		return answerMsg{response: parsed}
	}
}

// StartChat runs the interactive console until the user quits.
func StartChat(serverURL, userID string, timeout time.Duration) error {
	p := tea.NewProgram(initialModel(serverURL, userID, timeout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
