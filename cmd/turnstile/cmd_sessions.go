package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// =============================================================================
// SESSION MANAGEMENT COMMANDS
// =============================================================================

// sessionsCmd manages stored conversation sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long: `List the conversation sessions in the configured store.

Subcommands:
  list   - List all saved sessions`,
	RunE: runSessionsList,
}

// sessionsListCmd lists saved sessions
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	names, err := st.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("No saved sessions found.")
		return nil
	}

	fmt.Println("📁 Saved Sessions")
	fmt.Println(strings.Repeat("─", 50))
	for i, name := range names {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Total: %d sessions\n", len(names))
	fmt.Println("\nUse: turnstile run --session <name> \"...\"")

	return nil
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	rootCmd.AddCommand(sessionsCmd)
}
