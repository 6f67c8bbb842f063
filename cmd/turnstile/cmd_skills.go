package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"turnstile/internal/skills"
)

// =============================================================================
// SKILL BUNDLE COMMANDS
// =============================================================================

// skillsCmd manages instruction bundles
var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage skill bundles",
	Long: `List and inspect the skill bundles under the configured skills
directory. A bundle is a directory with a SKILL.md file: YAML frontmatter
(name, description, optional hints) over a markdown instruction body.

Subcommands:
  list   - List all well-formed bundles
  show   - Print a bundle's instructions`,
	RunE: runSkillsList,
}

// skillsListCmd lists available bundles
var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all skill bundles",
	RunE:  runSkillsList,
}

// skillsShowCmd prints one bundle's instruction body
var skillsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a bundle's instructions",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsShow,
}

func runSkillsList(cmd *cobra.Command, args []string) error {
	loader := skills.NewLoader(cfg.Skills.Dir, logger)
	metas, err := loader.List()
	if err != nil {
		return fmt.Errorf("failed to list skills: %w", err)
	}

	if len(metas) == 0 {
		fmt.Printf("No skill bundles found in %s\n", cfg.Skills.Dir)
		fmt.Println("A bundle is a directory containing a SKILL.md file.")
		return nil
	}

	fmt.Println("📚 Skill Bundles")
	fmt.Println(strings.Repeat("─", 50))
	for _, m := range metas {
		fmt.Printf("  %s: %s\n", m.Name, m.Description)
		if len(m.Hints) > 0 {
			fmt.Printf("      hints: %s\n", strings.Join(m.Hints, ", "))
		}
	}
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Total: %d bundles\n", len(metas))
	fmt.Println("\nUse: turnstile run --skill <name> \"...\"")

	return nil
}

func runSkillsShow(cmd *cobra.Command, args []string) error {
	loader := skills.NewLoader(cfg.Skills.Dir, logger)
	text, err := loader.Instructions(args[0])
	if err != nil {
		return fmt.Errorf("skill %s: %w", args[0], err)
	}
	fmt.Println(text)
	return nil
}

func init() {
	skillsCmd.AddCommand(skillsListCmd, skillsShowCmd)
	rootCmd.AddCommand(skillsCmd)
}
