// Package chat implements the interactive chat interface using bubbletea.
// A chat session runs one turn at a time through the engine; tokens stream
// into the viewport as they arrive and the completed exchange lands in the
// in-memory session, which /save persists to the configured store.
package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"turnstile/internal/engine"
	"turnstile/internal/skills"
	"turnstile/internal/store"
)

// Config carries everything the chat UI needs from the CLI.
type Config struct {
	// Engine executes turns.
	Engine *engine.Engine

	// Backend names the model for the header, e.g. "llama3.2".
	Backend string

	// Store persists sessions for /save. Optional.
	Store store.SessionStore

	// Session is the name of a stored session to load at startup. Optional.
	Session string

	// Skills locates instruction bundles for /skills. Optional.
	Skills *skills.Loader

	// Logger receives watcher and turn diagnostics. Optional.
	Logger *zap.Logger
}

// Run starts the interactive chat session.
func Run(cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	// Keep the bundle registry live while the chat runs; edits to the
	// skills directory show up in /skills without a restart. A failed
	// watcher never blocks the chat itself.
	var watcher *skills.Watcher
	if cfg.Skills != nil {
		w, err := skills.NewWatcher(cfg.Skills, nil, cfg.Logger)
		if err != nil {
			cfg.Logger.Warn("skills watcher unavailable", zap.Error(err))
		} else {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := w.Start(ctx); err == nil {
				watcher = w
				defer w.Stop()
			}
		}
	}

	m, err := newModel(cfg, watcher)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
