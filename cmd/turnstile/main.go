package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"turnstile/internal/config"
	"turnstile/internal/engine"
	"turnstile/internal/logging"
	"turnstile/internal/reasoner"
	"turnstile/internal/store"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
	timeout    time.Duration

	// Loaded once in PersistentPreRunE, shared by every command
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "turnstile",
	Short: "turnstile - single-turn reasoning over local and hosted models",
	Long: `turnstile runs one reasoning turn at a time.

Each turn assembles its context in a fixed order: persona, skill
instructions, tool results, conversation history, then the user input.
The assembled turn goes to the configured backend in exactly one call,
and on success the user/assistant exchange is appended to the session.

Backends: ollama (local), deepseek, gemini.

Run without arguments to start the interactive chat interface.`,
}

// The handler funcs reference rootCmd (via interactive), so they are
// attached here rather than in the composite literal to avoid an
// initialization cycle.
func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(resolveConfigPath())
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		format := cfg.Logging.Format
		if logFormat != "" {
			format = logFormat
		}

		// The chat UI owns the terminal; its logs go to the configured
		// file or nowhere.
		if interactive(cmd) && cfg.Logging.File == "" {
			logger = zap.NewNop()
			return nil
		}

		logger, err = logging.New(level, format, cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	}
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runChat(cmd, args)
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.turnstile/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Turn timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// interactive reports whether the command drives a full-screen UI.
func interactive(cmd *cobra.Command) bool {
	return cmd.Name() == rootCmd.Name() || cmd.Name() == "chat"
}

// buildReasoner constructs the backend named by the flag, falling back to
// the configured backend and model.
func buildReasoner(ctx context.Context, backend, model string) (reasoner.Reasoner, error) {
	if backend == "" {
		backend = cfg.Backend
	}
	if model == "" {
		model = cfg.Model
	}

	switch backend {
	case "ollama":
		return reasoner.NewOllama(reasoner.OllamaConfig{
			Host:    cfg.Ollama.Host,
			Model:   model,
			Timeout: timeout,
		}), nil
	case "deepseek":
		return reasoner.NewDeepSeek(reasoner.DeepSeekConfig{
			BaseURL: cfg.DeepSeek.BaseURL,
			Model:   model,
			APIKey:  cfg.DeepSeek.APIKey,
			Timeout: timeout,
		})
	case "gemini":
		return reasoner.NewGemini(ctx, reasoner.GeminiConfig{
			Model:  model,
			APIKey: cfg.Gemini.APIKey,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q (want ollama, deepseek or gemini)", backend)
	}
}

// buildEngine wires the resolved persona and logger around a backend.
func buildEngine(r reasoner.Reasoner) (*engine.Engine, error) {
	persona, err := cfg.ResolvePersona()
	if err != nil {
		return nil, err
	}
	return engine.New(r, engine.WithPersona(persona), engine.WithLogger(logger)), nil
}

// openStore opens the configured session store. The returned closer is
// always safe to call.
func openStore() (store.SessionStore, func(), error) {
	if cfg.Sessions.Store == "sqlite" {
		s, err := store.NewSQLiteStore(filepath.Join(cfg.Sessions.Dir, "sessions.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	}
	return store.NewFileStore(cfg.Sessions.Dir), func() {}, nil
}
