package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"turnstile/internal/engine"
	"turnstile/internal/skills"
	"turnstile/internal/types"
)

// handleSubmit starts a turn for the typed input. The engine call itself is
// non-blocking: it hands back channels and the update loop pumps them.
func (m model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	// Check for special commands
	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	// Add user message to history
	m.history = append(m.history, chatMessage{
		role:    "user",
		content: input,
		time:    time.Now(),
	})

	// Clear input
	m.textinput.Reset()
	m.err = nil

	// Start loading
	m.isLoading = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelTurn = cancel

	tokens, final := m.cfg.Engine.ExecuteStream(ctx, engine.TurnRequest{
		Input:   input,
		Session: m.session,
	})
	m.stream = &streamState{tokens: tokens, final: final}

	// Open an empty assistant entry; tokens accumulate into it.
	m.history = append(m.history, chatMessage{
		role: "assistant",
		time: time.Now(),
	})

	// Update viewport
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	return m, tea.Batch(
		m.spinner.Tick,
		readStream(m.stream),
	)
}

// readStream pumps one stream event back into the update loop.
func readStream(s *streamState) tea.Cmd {
	return func() tea.Msg {
		tok, ok := <-s.tokens
		if !ok {
			return streamFinalMsg(<-s.final)
		}
		return streamTokenMsg(tok)
	}
}

func (m model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.history = []chatMessage{}
		m.session = types.NewSession()
		m.viewport.SetContent("")
		m.textinput.Reset()
		return m, nil

	case "/save":
		if len(parts) < 2 {
			return m.pushSystem("Usage: `/save <name>`"), nil
		}
		if m.cfg.Store == nil {
			return m.pushSystem("No session store configured."), nil
		}
		name := parts[1]
		if err := m.cfg.Store.Save(m.session, name); err != nil {
			return m.pushSystem(fmt.Sprintf("Save failed: %v", err)), nil
		}
		m.sessionName = name
		return m.pushSystem(fmt.Sprintf("✅ Session saved as `%s` (%d messages)", name, m.session.Len())), nil

	case "/skills":
		return m.pushSystem(m.renderSkills()), nil

	case "/help":
		help := `## Available Commands

| Command | Description |
|---------|-------------|
| /save <name> | Save the session under a name |
| /skills | List the loaded skill bundles |
| /clear | Drop the transcript and start a fresh session |
| /help | Show this help message |
| /quit, /exit, /q | Exit the chat |

## Tips
- **Enter** to send a message
- **Ctrl+C** or **Esc** to exit
- Use **↑/↓** to scroll history
`
		return m.pushSystem(help), nil

	default:
		return m.pushSystem(fmt.Sprintf("Unknown command `%s`. Try `/help`.", cmd)), nil
	}
}

// pushSystem appends a notice to the transcript without touching the
// session history.
func (m model) pushSystem(content string) model {
	m.history = append(m.history, chatMessage{
		role:    "system",
		content: content,
		time:    time.Now(),
	})
	m.textinput.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	return m
}

// skillRegistry returns the freshest bundle snapshot available: the live
// watcher when it runs, a direct load otherwise.
func (m model) skillRegistry() *skills.Registry {
	if m.watcher != nil {
		return m.watcher.Registry()
	}
	if m.cfg.Skills != nil {
		if reg, err := m.cfg.Skills.Registry(); err == nil {
			return reg
		}
	}
	return nil
}

func (m model) renderSkills() string {
	reg := m.skillRegistry()
	if reg == nil || reg.Len() == 0 {
		return "No skill bundles loaded."
	}

	var sb strings.Builder
	sb.WriteString("## Skill Bundles\n\n")
	for _, name := range reg.Names() {
		if meta, ok := reg.Get(name); ok {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", meta.Name, meta.Description))
		}
	}
	return sb.String()
}
