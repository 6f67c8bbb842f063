package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"turnstile/internal/gate"
	"turnstile/internal/tools"
)

var (
	toolsRunAllow []string
	toolsRunArgs  []string
)

// =============================================================================
// CAPABILITY COMMANDS
// =============================================================================

// toolsCmd manages the capability registry
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage capabilities",
	Long: `List the registered capabilities or invoke one directly. Every
invocation goes through the permission gate: a capability whose
permissions are not granted with --allow is denied before its body runs.

Subcommands:
  list   - List registered capabilities
  run    - Invoke a capability directly`,
	RunE: runToolsList,
}

// toolsListCmd lists registered capabilities
var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered capabilities",
	RunE:  runToolsList,
}

// toolsRunCmd invokes one capability behind the gate
var toolsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Invoke a capability directly",
	Long: `Invokes a single capability with the given arguments.

Examples:
  turnstile tools run echo --arg text=hello
  turnstile tools run read-file --arg path=go.mod --allow filesystem-read
  turnstile tools run web-fetch --arg url=https://go.dev --allow network`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsRun,
}

func runToolsList(cmd *cobra.Command, args []string) error {
	reg := tools.Builtin()

	fmt.Println("🔧 Registered Capabilities")
	fmt.Println(strings.Repeat("─", 50))
	for _, t := range reg.List() {
		fmt.Printf("  %s: %s\n", t.Name, t.Description)
		if len(t.Permissions) > 0 {
			names := make([]string, len(t.Permissions))
			for i, p := range t.Permissions {
				names[i] = string(p)
			}
			fmt.Printf("      requires: %s\n", strings.Join(names, ", "))
		}
	}
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Total: %d capabilities\n", reg.Count())
	fmt.Println("\nUse: turnstile tools run <name> --arg key=value")

	return nil
}

func runToolsRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	perms, err := parsePermissions(toolsRunAllow)
	if err != nil {
		return err
	}
	toolArgs, err := parseToolArgs(toolsRunArgs)
	if err != nil {
		return err
	}

	reg := tools.Builtin()
	res, err := reg.Invoke(ctx, args[0], toolArgs, gate.New(perms...))
	if err != nil {
		return err
	}

	if res.OK() {
		fmt.Println(res.Output)
		return nil
	}
	if msg, ok := res.Metadata["error_message"].(string); ok {
		return fmt.Errorf("%s failed: %s", res.Tool, msg)
	}
	return fmt.Errorf("%s failed", res.Tool)
}

func init() {
	toolsRunCmd.Flags().StringArrayVar(&toolsRunAllow, "allow", nil, "Grant a permission (repeatable)")
	toolsRunCmd.Flags().StringArrayVar(&toolsRunArgs, "arg", nil, "Capability argument key=value (repeatable)")

	toolsCmd.AddCommand(toolsListCmd, toolsRunCmd)
	rootCmd.AddCommand(toolsCmd)
}
