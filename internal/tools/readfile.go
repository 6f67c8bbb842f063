package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"turnstile/internal/types"
)

// ReadFile returns the built-in file reading capability. It requires the
// filesystem-read permission and refuses any path that resolves outside the
// working directory.
func ReadFile() *Tool {
	return &Tool{
		Name:        "read-file",
		Description: "Read a text file from the working directory",
		Hints:       []string{"read file", "open file", "show file"},
		Permissions: []types.Permission{types.PermissionFilesystemRead},
		Execute:     executeReadFile,
		ExtractArgs: extractReadFileArgs,
	}
}

func executeReadFile(_ context.Context, args map[string]string) (string, error) {
	path := strings.TrimSpace(args["path"])
	if path == "" {
		return "", fmt.Errorf("%w: path", ErrMissingRequiredArg)
	}
	if err := guardWorkdir(path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// guardWorkdir rejects escaping paths before any filesystem access.
func guardWorkdir(path string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(wd, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(wd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathOutside, path)
	}
	return nil
}

// extractReadFileArgs picks the most path-looking token, scanning from the
// end so "read file notes.txt" yields notes.txt.
func extractReadFileArgs(prompt string) map[string]string {
	fields := strings.Fields(prompt)
	for i := len(fields) - 1; i >= 0; i-- {
		tok := strings.Trim(fields[i], `"',;:!?`)
		tok = strings.TrimSuffix(tok, ".")
		if tok == "" {
			continue
		}
		if strings.ContainsRune(tok, '/') || strings.ContainsRune(tok, '.') {
			return map[string]string{"path": tok}
		}
	}
	return map[string]string{}
}
