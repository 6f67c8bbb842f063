package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Echo returns the built-in echo capability. It requires no permissions and
// reflects its arguments back as sorted key=value pairs.
func Echo() *Tool {
	return &Tool{
		Name:        "echo",
		Description: "Echo the provided arguments back",
		Hints:       []string{"echo", "repeat"},
		Execute:     executeEcho,
		ExtractArgs: extractEchoArgs,
	}
}

func executeEcho(_ context.Context, args map[string]string) (string, error) {
	if len(args) == 0 {
		return "(no arguments)", nil
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, args[k])
	}
	return strings.Join(parts, " "), nil
}

// extractEchoArgs strips the leading hint so "echo hello" echoes "hello".
func extractEchoArgs(prompt string) map[string]string {
	trimmed := strings.TrimSpace(prompt)
	lower := strings.ToLower(trimmed)
	for _, hint := range []string{"echo", "repeat"} {
		if strings.HasPrefix(lower, hint) {
			rest := strings.TrimSpace(trimmed[len(hint):])
			if rest == "" {
				return map[string]string{}
			}
			return map[string]string{"text": rest}
		}
	}
	if trimmed == "" {
		return map[string]string{}
	}
	return map[string]string{"text": trimmed}
}
