// Package types provides shared type definitions used across turnstile packages.
// This package exists to break import cycles between the engine, gate, tools,
// and store layers. Types here are foundational data structures with no
// complex dependencies.
package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLES AND MESSAGES
// =============================================================================

// Role tags a message within an assembled turn context. The set is closed:
// system, user and assistant are the durable conversation roles, while
// instruction and tool_result exist only for the duration of a single turn
// and are never written into a session.
type Role string

const (
	// RoleSystem carries the persona prompt. Present at most once per turn,
	// always first.
	RoleSystem Role = "system"

	// RoleUser is a caller-supplied input. Appendable to a session.
	RoleUser Role = "user"

	// RoleAssistant is a backend reply. Appendable to a session.
	RoleAssistant Role = "assistant"

	// RoleInstruction carries instruction-bundle text injected for one turn.
	// System-like on the wire, never persisted.
	RoleInstruction Role = "instruction"

	// RoleToolResult carries capability output injected for one turn.
	// User-like on the wire, never persisted.
	RoleToolResult Role = "tool_result"
)

// TurnScoped reports whether the role exists only inside a single turn's
// assembled context.
func (r Role) TurnScoped() bool {
	return r == RoleInstruction || r == RoleToolResult
}

// Appendable reports whether a message with this role may be appended to a
// session. Only the user/assistant exchange is part of durable history.
func (r Role) Appendable() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one role-tagged entry in a turn context or a session history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message with a fresh identity and UTC timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// Response is the structured result of one backend call. The backend
// identifier keeps a response distinguishable from any message.
type Response struct {
	Content   string         `json:"content"`
	Backend   string         `json:"backend"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewResponse builds a response with a fresh identity and UTC timestamp.
// Metadata is never nil so callers can read it without guarding.
func NewResponse(content, backend string, metadata map[string]any) *Response {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Response{
		Content:   content,
		Backend:   backend,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// =============================================================================
// CAPABILITY RESULTS
// =============================================================================

// Status classifies the outcome of a capability invocation.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ToolResult is the outcome of one capability invocation. It is turn-scoped
// context, deliberately not a Message, so history appends cannot accept it.
type ToolResult struct {
	Tool     string         `json:"tool"`
	Output   string         `json:"output"`
	Status   Status         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// OK reports whether the invocation succeeded.
func (tr ToolResult) OK() bool {
	return tr.Status == StatusOK
}

// =============================================================================
// SESSIONS
// =============================================================================

// ErrRoleNotAppendable is returned when a message whose role is not part of
// the durable user/assistant exchange is appended to a session.
var ErrRoleNotAppendable = errors.New("role cannot be appended to a session")

// Session is an append-only ordered conversation history. The caller owns
// its lifetime; the engine only ever appends completed exchanges to it.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// NewSession builds an empty session with a fresh identity.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Messages:  []Message{},
	}
}

// Append adds a message to the history. Only user and assistant messages are
// accepted; persona, instruction and capability content never persists.
func (s *Session) Append(msg Message) error {
	if !msg.Role.Appendable() {
		return fmt.Errorf("%w: %s", ErrRoleNotAppendable, msg.Role)
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	return len(s.Messages)
}

// Clone returns a deep copy. Mutating the copy leaves the original intact.
func (s *Session) Clone() *Session {
	out := &Session{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Messages:  make([]Message, len(s.Messages)),
	}
	copy(out.Messages, s.Messages)
	return out
}

// =============================================================================
// PERMISSIONS
// =============================================================================

// Permission names one grantable capability class. The set is closed; parse
// rejects anything else.
type Permission string

const (
	PermissionFilesystemRead  Permission = "filesystem-read"
	PermissionFilesystemWrite Permission = "filesystem-write"
	PermissionShell           Permission = "shell"
	PermissionNetwork         Permission = "network"
)

// ErrUnknownPermission is returned by ParsePermission for values outside the
// closed set.
var ErrUnknownPermission = errors.New("unknown permission")

// AllPermissions returns the closed permission set in stable order.
func AllPermissions() []Permission {
	return []Permission{
		PermissionFilesystemRead,
		PermissionFilesystemWrite,
		PermissionShell,
		PermissionNetwork,
	}
}

// ParsePermission validates a raw string against the closed set.
func ParsePermission(s string) (Permission, error) {
	for _, p := range AllPermissions() {
		if s == string(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
}
