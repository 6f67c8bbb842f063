package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	badgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginTop(1)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	readyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	busyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func (m model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	// Header
	header := m.renderHeader()

	// Chat viewport
	chatView := m.viewport.View()

	// Loading indicator
	if m.isLoading {
		chatView += "\n" + spinnerStyle.Render(m.spinner.View()) + " Thinking..."
	}

	// Error display
	if m.err != nil {
		chatView += "\n" + errorStyle.Render("Error: "+m.err.Error())
	}

	// Input area
	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textinput.View())

	// Footer
	footer := m.renderFooter()

	// Compose full view
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m model) renderHeader() string {
	title := titleStyle.Render(" 🧠 turnstile ")
	backend := badgeStyle.Render(m.cfg.Backend)

	var status string
	if m.isLoading {
		status = busyStyle.Render("● Thinking")
	} else {
		status = readyStyle.Render("● Ready")
	}

	headerLine := lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		" ",
		backend,
		"  ",
		status,
	)

	label := m.sessionName
	if label == "" {
		label = "unsaved"
	}
	sessionLine := mutedStyle.Render(" 📁 session: " + label)

	width := m.width
	if width < 1 {
		width = 80
	}
	divider := mutedStyle.Render(strings.Repeat("─", width))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		sessionLine,
		divider,
	)
}

func (m model) renderFooter() string {
	help := mutedStyle.Render("Enter: send • /save <name>: save session • /help: commands • Ctrl+C: exit")
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}

func (m model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		switch msg.role {
		case "user":
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(msg.content)
			sb.WriteString("\n\n")
		case "system":
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		default:
			sb.WriteString(assistantStyle.Render("🧠 turnstile") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}
