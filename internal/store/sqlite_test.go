package store

import (
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	runSessionStoreTests(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	session := sampleSession(t, "remember me", "always")
	if err := s.Save(session, "durable"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load("durable")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if got.ID != session.ID || got.Len() != 2 {
		t.Errorf("reopened session id=%q len=%d", got.ID, got.Len())
	}
	if got.Messages[0].Content != "remember me" {
		t.Errorf("first message = %+v", got.Messages[0])
	}
}
