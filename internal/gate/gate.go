// Package gate enforces default-deny permission checks for capability
// invocations. A gate holds the permissions granted for a run and authorizes
// a capability only when every required permission is present. Authorization
// is a pure set check: it must happen before the capability body runs, and a
// denial names everything that was missing.
package gate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"turnstile/internal/types"
)

// ErrDenied is wrapped by every authorization failure.
var ErrDenied = errors.New("permission denied")

// DenialError reports which permissions a capability required but the gate
// did not grant.
type DenialError struct {
	Capability string
	Missing    []types.Permission
}

func (e *DenialError) Error() string {
	names := make([]string, len(e.Missing))
	for i, p := range e.Missing {
		names[i] = string(p)
	}
	return fmt.Sprintf("capability %q denied: missing permissions: %s",
		e.Capability, strings.Join(names, ", "))
}

func (e *DenialError) Unwrap() error { return ErrDenied }

// Gate holds the permissions granted for a run. The zero value grants
// nothing; every permission must be granted explicitly.
type Gate struct {
	granted map[types.Permission]bool
}

// New builds a gate granting exactly the given permissions.
func New(perms ...types.Permission) *Gate {
	g := &Gate{granted: make(map[types.Permission]bool, len(perms))}
	for _, p := range perms {
		g.granted[p] = true
	}
	return g
}

// Permissive builds a gate granting the full closed permission set.
func Permissive() *Gate {
	return New(types.AllPermissions()...)
}

// Has reports whether a single permission is granted.
func (g *Gate) Has(p types.Permission) bool {
	if g == nil {
		return false
	}
	return g.granted[p]
}

// Grants returns the granted permissions in sorted order.
func (g *Gate) Grants() []types.Permission {
	if g == nil {
		return nil
	}
	out := make([]types.Permission, 0, len(g.granted))
	for p := range g.granted {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Authorize checks that every required permission is granted. A capability
// that requires nothing passes even through an empty gate. On failure the
// returned error is a *DenialError listing the missing permissions in
// sorted order, and the caller must not run the capability.
func (g *Gate) Authorize(capability string, required []types.Permission) error {
	missing := map[types.Permission]bool{}
	for _, p := range required {
		if !g.Has(p) {
			missing[p] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}

	list := make([]types.Permission, 0, len(missing))
	for p := range missing {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return &DenialError{Capability: capability, Missing: list}
}
