package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"turnstile/internal/config"
	"turnstile/internal/gate"
	"turnstile/internal/record"
	"turnstile/internal/types"
)

func TestParsePermissions(t *testing.T) {
	perms, err := parsePermissions([]string{"filesystem-read", "network"})
	if err != nil {
		t.Fatalf("parsePermissions returned error: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(perms))
	}

	if _, err := parsePermissions([]string{"root"}); err == nil {
		t.Fatal("expected error for unknown permission")
	}
}

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs([]string{"path=go.mod", "url=https://go.dev?a=b"})
	if err != nil {
		t.Fatalf("parseToolArgs returned error: %v", err)
	}
	if args["path"] != "go.mod" {
		t.Fatalf("expected path=go.mod, got %q", args["path"])
	}
	if args["url"] != "https://go.dev?a=b" {
		t.Fatalf("value with = should keep everything after the first cut, got %q", args["url"])
	}

	for _, bad := range []string{"noequals", "=value", "  =x"} {
		if _, err := parseToolArgs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRunTurnUsageErrors(t *testing.T) {
	setupCLI(t)

	t.Run("no prompt and no record", func(t *testing.T) {
		resetRunFlags(t)
		err := runTurn(&cobra.Command{}, []string{})
		if err == nil || !strings.Contains(err.Error(), "nothing to run") {
			t.Fatalf("expected usage error, got %v", err)
		}
	})

	t.Run("route conflicts with explicit tool", func(t *testing.T) {
		resetRunFlags(t)
		runRoute = true
		runTools = []string{"echo"}
		err := runTurn(&cobra.Command{}, []string{"hello"})
		if err == nil || !strings.Contains(err.Error(), "--route") {
			t.Fatalf("expected route conflict error, got %v", err)
		}
	})

	t.Run("route conflicts with explicit skill", func(t *testing.T) {
		resetRunFlags(t)
		runRoute = true
		runSkills = []string{"review"}
		err := runTurn(&cobra.Command{}, []string{"hello"})
		if err == nil || !strings.Contains(err.Error(), "--route") {
			t.Fatalf("expected route conflict error, got %v", err)
		}
	})

	t.Run("unknown allow value", func(t *testing.T) {
		resetRunFlags(t)
		runAllow = []string{"sudo"}
		err := runTurn(&cobra.Command{}, []string{"hello"})
		if err == nil || !strings.Contains(err.Error(), "unknown permission") {
			t.Fatalf("expected permission error, got %v", err)
		}
	})

	t.Run("bad arg syntax", func(t *testing.T) {
		resetRunFlags(t)
		runArgs = []string{"pathgo.mod"}
		err := runTurn(&cobra.Command{}, []string{"hello"})
		if err == nil || !strings.Contains(err.Error(), "want key=value") {
			t.Fatalf("expected arg syntax error, got %v", err)
		}
	})
}

func TestRunTurnDeniesUngrantedTool(t *testing.T) {
	setupCLI(t)
	resetRunFlags(t)

	// No --allow grants: the gate must stop the turn before any backend
	// call. The unreachable host proves nothing was contacted.
	cfg.Ollama.Host = "http://127.0.0.1:1"
	runTools = []string{"read-file"}
	runArgs = []string{"path=go.mod"}

	err := runTurn(&cobra.Command{}, []string{"what is in this file?"})
	var denial *gate.DenialError
	if !errors.As(err, &denial) {
		t.Fatalf("expected a denial error, got %v", err)
	}
}

func TestRunTurnFullPipeline(t *testing.T) {
	setupCLI(t)
	resetRunFlags(t)

	var lastRequest struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &lastRequest)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"The answer is 4."},"done":true,"eval_count":5,"prompt_eval_count":12}`))
	}))
	t.Cleanup(server.Close)

	cfg.Ollama.Host = server.URL
	recordPath := filepath.Join(t.TempDir(), "turn.json")
	runSession = "math"
	runRecord = recordPath
	runContinue = true

	output := captureOutput(t, func() {
		if err := runTurn(&cobra.Command{}, []string{"what is 2+2?"}); err != nil {
			t.Errorf("runTurn returned error: %v", err)
		}
	})

	if !strings.Contains(output, "The answer is 4.") {
		t.Fatalf("expected response in output, got: %s", output)
	}

	// The saved session holds exactly the completed exchange.
	st, closeStore, err := openStore()
	if err != nil {
		t.Fatalf("openStore returned error: %v", err)
	}
	defer closeStore()
	sess, err := st.Load("math")
	if err != nil {
		t.Fatalf("session was not saved: %v", err)
	}
	if sess.Len() != 2 {
		t.Fatalf("expected 2 messages in session, got %d", sess.Len())
	}

	// The record round-trips and carries the continuation flag.
	data, err := os.ReadFile(recordPath)
	if err != nil {
		t.Fatalf("record was not written: %v", err)
	}
	rec, err := record.Decode(data)
	if err != nil {
		t.Fatalf("record does not decode: %v", err)
	}
	if rec.Input.Prompt != "what is 2+2?" {
		t.Fatalf("record prompt = %q", rec.Input.Prompt)
	}
	if rec.Output.Content != "The answer is 4." {
		t.Fatalf("record output = %q", rec.Output.Content)
	}
	if !rec.Continuation.Requested {
		t.Fatal("continuation flag was not set")
	}

	// The backend saw the user prompt as the final message.
	last := lastRequest.Messages[len(lastRequest.Messages)-1]
	if last.Role != "user" || last.Content != "what is 2+2?" {
		t.Fatalf("unexpected final message: %+v", last)
	}
}

func TestRunTurnSeedsFromRecord(t *testing.T) {
	setupCLI(t)
	resetRunFlags(t)

	var lastRequest struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &lastRequest)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Continuing."},"done":true}`))
	}))
	t.Cleanup(server.Close)
	cfg.Ollama.Host = server.URL

	// A prior turn's record seeds the next turn's input.
	prior := record.FromTurn(record.Input{Prompt: "start", Backend: "llama3.2"},
		types.NewResponse("partial analysis of the corpus", "llama3.2", nil),
		record.Continuation{Requested: true})
	data, err := prior.Encode()
	if err != nil {
		t.Fatalf("encode prior record: %v", err)
	}
	recordPath := filepath.Join(t.TempDir(), "prior.json")
	if err := os.WriteFile(recordPath, data, 0o644); err != nil {
		t.Fatalf("write prior record: %v", err)
	}

	runFromRecord = recordPath
	captureOutput(t, func() {
		if err := runTurn(&cobra.Command{}, nil); err != nil {
			t.Errorf("runTurn returned error: %v", err)
		}
	})

	last := lastRequest.Messages[len(lastRequest.Messages)-1]
	if last.Content != "partial analysis of the corpus" {
		t.Fatalf("input was not seeded from the record: %q", last.Content)
	}
}

func TestRunToolsListShowsBuiltins(t *testing.T) {
	setupCLI(t)

	output := captureOutput(t, func() {
		if err := runToolsList(&cobra.Command{}, nil); err != nil {
			t.Errorf("runToolsList returned error: %v", err)
		}
	})

	for _, name := range []string{"echo", "read-file", "web-fetch"} {
		if !strings.Contains(output, name) {
			t.Fatalf("expected %s in listing, got: %s", name, output)
		}
	}
}

func TestRunSkillsListEmpty(t *testing.T) {
	setupCLI(t)

	output := captureOutput(t, func() {
		if err := runSkillsList(&cobra.Command{}, nil); err != nil {
			t.Errorf("runSkillsList returned error: %v", err)
		}
	})

	if !strings.Contains(output, "No skill bundles found") {
		t.Fatalf("expected empty notice, got: %s", output)
	}
}

func TestRunSessionsListEmpty(t *testing.T) {
	setupCLI(t)

	output := captureOutput(t, func() {
		if err := runSessionsList(&cobra.Command{}, nil); err != nil {
			t.Errorf("runSessionsList returned error: %v", err)
		}
	})

	if !strings.Contains(output, "No saved sessions found") {
		t.Fatalf("expected empty notice, got: %s", output)
	}
}

// setupCLI points the package globals at throwaway directories.
func setupCLI(t *testing.T) {
	t.Helper()
	base := t.TempDir()
	cfg = config.DefaultConfig()
	cfg.Skills.Dir = filepath.Join(base, "skills")
	cfg.Sessions.Dir = filepath.Join(base, "sessions")
	logger = zap.NewNop()
}

func resetRunFlags(t *testing.T) {
	t.Helper()
	runBackend, runModel = "", ""
	runStream = false
	runSession = ""
	runSkills, runTools, runArgs, runAllow = nil, nil, nil, nil
	runRoute = false
	runRecord, runFromRecord = "", ""
	runContinue = false
	timeout = 30 * time.Second
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = origOut
	return <-done
}
