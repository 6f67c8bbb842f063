// Package store persists conversation sessions by name. Two backends
// share one interface: flat JSON files and a single SQLite database.
package store

import (
	"errors"
	"fmt"
	"strings"

	"turnstile/internal/types"
)

var (
	// ErrSessionNotFound marks a lookup for a session that was never saved.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidName rejects session names that could escape the store.
	ErrInvalidName = errors.New("invalid session name")
)

// SessionStore saves and restores sessions by name. Names are flat
// identifiers, never paths.
type SessionStore interface {
	Save(session *types.Session, name string) error
	Load(name string) (*types.Session, error)
	List() ([]string, error)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
