package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"turnstile/internal/reasoner"
	"turnstile/internal/skills"
	"turnstile/internal/store"
	"turnstile/internal/types"
)

// model is the main model for the interactive chat interface
type model struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	// State
	history   []chatMessage
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	// Turn state
	session     *types.Session
	sessionName string
	stream      *streamState
	cancelTurn  func()

	// Backend
	cfg     Config
	watcher *skills.Watcher
}

type chatMessage struct {
	role    string // "user", "assistant" or "system"
	content string
	time    time.Time
}

// streamState holds the channels of the turn currently in flight.
type streamState struct {
	tokens <-chan string
	final  <-chan reasoner.Final
}

// Messages for tea updates
type (
	streamTokenMsg string
	streamFinalMsg reasoner.Final
)

// newModel initializes the chat model, loading the startup session when one
// is named. A missing session starts fresh under that name.
func newModel(cfg Config, watcher *skills.Watcher) (model, error) {
	sess := types.NewSession()
	name := cfg.Session
	if name != "" && cfg.Store != nil {
		loaded, err := cfg.Store.Load(name)
		switch {
		case err == nil:
			sess = loaded
		case errors.Is(err, store.ErrSessionNotFound):
			// Fresh session under the requested name.
		default:
			return model{}, fmt.Errorf("load session %s: %w", name, err)
		}
	}

	// Seed the transcript from the loaded history.
	history := make([]chatMessage, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		history = append(history, chatMessage{
			role:    string(msg.Role),
			content: msg.Content,
			time:    msg.Timestamp,
		})
	}

	ti := textinput.New()
	ti.Placeholder = "Ask me anything... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return model{
		textinput:   ti,
		viewport:    vp,
		spinner:     sp,
		renderer:    renderer,
		history:     history,
		session:     sess,
		sessionName: name,
		cfg:         cfg,
		watcher:     watcher,
	}, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancelTurn != nil {
				m.cancelTurn()
			}
			return m, tea.Quit

		case tea.KeyEnter:
			// Enter sends the message
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		// Handle regular key input
		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}

		m.textinput.Width = msg.Width - 4

		// Update renderer word wrap
		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}

		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case streamTokenMsg:
		if n := len(m.history); n > 0 && m.history[n-1].role == "assistant" {
			m.history[n-1].content += string(msg)
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, readStream(m.stream)

	case streamFinalMsg:
		m.isLoading = false
		m.stream = nil
		if m.cancelTurn != nil {
			m.cancelTurn()
			m.cancelTurn = nil
		}

		final := reasoner.Final(msg)
		if final.Err != nil {
			m.err = final.Err
			// Drop the assistant entry the failed turn opened.
			if n := len(m.history); n > 0 && m.history[n-1].role == "assistant" && m.history[n-1].content == "" {
				m.history = m.history[:n-1]
			}
		} else if final.Response != nil {
			if n := len(m.history); n > 0 && m.history[n-1].role == "assistant" {
				m.history[n-1].content = final.Response.Content
			}
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}
