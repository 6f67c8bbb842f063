// Package tools provides the capability registry and the built-in
// capabilities. A capability declares the permissions it needs and the hint
// phrases the intent router matches; invocation always goes through the
// permission gate before the capability body runs.
package tools

import (
	"context"
	"strings"

	"turnstile/internal/types"
)

// ExecFunc is the signature for capability execution. It returns the textual
// output and any execution error.
type ExecFunc func(ctx context.Context, args map[string]string) (string, error)

// ExtractFunc derives invocation arguments from a raw prompt. It is applied
// after routing so the capability owns its own argument shape.
type ExtractFunc func(prompt string) map[string]string

// Tool defines one invokable capability.
type Tool struct {
	// Name is the unique identifier within a registry.
	Name string

	// Description explains what the capability does.
	Description string

	// Hints are the phrases the intent router matches against user input.
	Hints []string

	// Permissions lists the grants required before Execute may run.
	// Empty means unrestricted.
	Permissions []types.Permission

	// Execute runs the capability.
	Execute ExecFunc

	// ExtractArgs optionally derives Execute arguments from a routed
	// prompt. Nil means the capability takes whatever the caller supplies.
	ExtractArgs ExtractFunc
}

// Validate checks that a tool is registrable.
func (t *Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Args derives invocation arguments from a prompt, or an empty map when the
// capability has no extractor.
func (t *Tool) Args(prompt string) map[string]string {
	if t.ExtractArgs == nil {
		return map[string]string{}
	}
	args := t.ExtractArgs(prompt)
	if args == nil {
		return map[string]string{}
	}
	return args
}
