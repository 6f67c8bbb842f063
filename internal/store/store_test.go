package store

import (
	"errors"
	"testing"

	"turnstile/internal/types"
)

func sampleSession(t *testing.T, exchanges ...string) *types.Session {
	t.Helper()
	session := types.NewSession()
	for i, content := range exchanges {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		if err := session.Append(types.NewMessage(role, content)); err != nil {
			t.Fatal(err)
		}
	}
	return session
}

// runSessionStoreTests exercises the semantics both backends share.
func runSessionStoreTests(t *testing.T, s SessionStore) {
	t.Helper()

	names, err := s.List()
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("empty store lists %v", names)
	}

	if _, err := s.Load("never-saved"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load missing: error = %v, want ErrSessionNotFound", err)
	}

	session := sampleSession(t, "What is 2+2?", "4", "and 3+3?", "6")
	if err := s.Save(session, "math"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("math")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("loaded ID = %q, want %q", got.ID, session.ID)
	}
	if !got.CreatedAt.Equal(session.CreatedAt) {
		t.Errorf("loaded CreatedAt = %v, want %v", got.CreatedAt, session.CreatedAt)
	}
	if got.Len() != session.Len() {
		t.Fatalf("loaded %d messages, want %d", got.Len(), session.Len())
	}
	for i, want := range session.Messages {
		m := got.Messages[i]
		if m.Role != want.Role || m.Content != want.Content || m.ID != want.ID {
			t.Errorf("message[%d] = %+v, want %+v", i, m, want)
		}
		if !m.Timestamp.Equal(want.Timestamp) {
			t.Errorf("message[%d] timestamp = %v, want %v", i, m.Timestamp, want.Timestamp)
		}
	}

	// Overwrite replaces the stored copy entirely.
	replacement := sampleSession(t, "only one exchange", "yes")
	if err := s.Save(replacement, "math"); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, err = s.Load("math")
	if err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
	if got.ID != replacement.ID || got.Len() != 2 {
		t.Errorf("overwrite left id=%q len=%d", got.ID, got.Len())
	}

	if err := s.Save(sampleSession(t, "hi", "hello"), "alpha"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	names, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "math" {
		t.Errorf("List = %v, want [alpha math]", names)
	}

	for _, bad := range []string{"", "a/b", `a\b`, "../escape", ".", ".."} {
		if err := s.Save(session, bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q): error = %v, want ErrInvalidName", bad, err)
		}
		if _, err := s.Load(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Load(%q): error = %v, want ErrInvalidName", bad, err)
		}
	}
}
