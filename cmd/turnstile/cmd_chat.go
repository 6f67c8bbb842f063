package main

import (
	"context"

	"github.com/spf13/cobra"

	"turnstile/cmd/turnstile/chat"
	"turnstile/internal/skills"
)

var (
	chatBackend string
	chatModel   string
	chatSession string
)

// chatCmd starts the interactive chat interface
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	Long: `Starts a full-screen chat session against the configured backend.
Responses stream into the viewport as they arrive.

Slash commands:
  /save <name>   - Save the session under a name
  /skills        - List the loaded skill bundles
  /help          - Show all commands
  /quit          - Exit

Examples:
  turnstile chat
  turnstile chat --session work
  turnstile chat --backend deepseek`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	r, err := buildReasoner(context.Background(), chatBackend, chatModel)
	if err != nil {
		return err
	}
	eng, err := buildEngine(r)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	return chat.Run(chat.Config{
		Engine:  eng,
		Backend: r.ID(),
		Store:   st,
		Session: chatSession,
		Skills:  skills.NewLoader(cfg.Skills.Dir, logger),
		Logger:  logger,
	})
}

func init() {
	chatCmd.Flags().StringVar(&chatBackend, "backend", "", "Backend: ollama, deepseek or gemini (default: config)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Model name (default: config)")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Load this stored session at startup")

	rootCmd.AddCommand(chatCmd)
}
