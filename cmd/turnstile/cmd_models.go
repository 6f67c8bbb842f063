package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"turnstile/internal/reasoner"
)

// modelsCmd lists the locally installed Ollama models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List installed Ollama models",
	Long: `Lists the models the local Ollama server has installed and marks
the one turnstile would pick by default.`,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := reasoner.NewOllama(reasoner.OllamaConfig{Host: cfg.Ollama.Host})
	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	if len(models) == 0 {
		fmt.Println("No models installed.")
		fmt.Println("Pull one with: ollama pull llama3.2")
		return nil
	}

	def, err := client.DefaultModel(ctx)
	if err != nil {
		def = ""
	}

	fmt.Println("📦 Installed Ollama Models")
	fmt.Println(strings.Repeat("─", 50))
	for _, m := range models {
		marker := " "
		if m == def {
			marker = "✓"
		}
		fmt.Printf("  %s %s\n", marker, m)
	}
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Total: %d models\n", len(models))
	fmt.Println("\nUse: turnstile run --model <name> \"...\"")

	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
