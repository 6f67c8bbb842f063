package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEchoNoArguments(t *testing.T) {
	out, err := Echo().Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("echo failed: %v", err)
	}
	if out != "(no arguments)" {
		t.Errorf("output = %q", out)
	}
}

func TestEchoSortsPairs(t *testing.T) {
	out, err := Echo().Execute(context.Background(), map[string]string{
		"zebra": "stripes",
		"apple": "red",
		"mango": "sweet",
	})
	if err != nil {
		t.Fatalf("echo failed: %v", err)
	}
	if out != "apple=red mango=sweet zebra=stripes" {
		t.Errorf("output = %q", out)
	}
}

func TestEchoExtractArgs(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"echo hello world", "hello world"},
		{"ECHO shouted", "shouted"},
		{"repeat after me", "after me"},
		{"echo", ""},
		{"plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			args := Echo().Args(tt.prompt)
			if tt.want == "" {
				if len(args) != 0 {
					t.Errorf("args = %v, want empty", args)
				}
				return
			}
			if args["text"] != tt.want {
				t.Errorf("text = %q, want %q", args["text"], tt.want)
			}
		})
	}
}

func TestReadFileReadsWithinWorkdir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := ReadFile().Execute(context.Background(), map[string]string{"path": "notes.txt"})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out != "hello notes" {
		t.Errorf("output = %q", out)
	}
}

func TestReadFileAcceptsAbsolutePathInsideWorkdir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	target := filepath.Join(dir, "inside.txt")
	if err := os.WriteFile(target, []byte("inside"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := ReadFile().Execute(context.Background(), map[string]string{"path": target})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out != "inside" {
		t.Errorf("output = %q", out)
	}
}

func TestReadFileRejectsEscapes(t *testing.T) {
	t.Chdir(t.TempDir())

	for _, path := range []string{
		"../outside.txt",
		"../../etc/passwd",
		"nested/../../escape.txt",
		"/etc/passwd",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := ReadFile().Execute(context.Background(), map[string]string{"path": path})
			if !errors.Is(err, ErrPathOutside) {
				t.Errorf("path %q: got %v, want ErrPathOutside", path, err)
			}
		})
	}
}

func TestReadFileRequiresPath(t *testing.T) {
	_, err := ReadFile().Execute(context.Background(), nil)
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Errorf("got %v, want ErrMissingRequiredArg", err)
	}
}

func TestReadFileExtractArgs(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"read file notes.txt", "notes.txt"},
		{"please open file src/main.go now", "src/main.go"},
		{"show file 'config.yaml'", "config.yaml"},
		{"read something", ""},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			args := ReadFile().Args(tt.prompt)
			if args["path"] != tt.want {
				t.Errorf("path = %q, want %q", args["path"], tt.want)
			}
		})
	}
}

func TestArgsWithoutExtractor(t *testing.T) {
	tool := staticTool("bare", "x")
	args := tool.Args("anything at all")
	if args == nil || len(args) != 0 {
		t.Errorf("args = %v, want empty map", args)
	}
}
