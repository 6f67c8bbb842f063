package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"turnstile/internal/types"
)

const (
	webFetchTimeout   = 30 * time.Second
	webFetchMaxBody   = 2 << 20
	webFetchMaxOutput = 50000
)

// Pre-compiled to avoid recompilation on every fetch.
var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// WebFetch returns the built-in page fetching capability. It requires the
// network permission, pulls a single URL and reduces the HTML to readable
// text.
func WebFetch() *Tool {
	return &Tool{
		Name:        "web-fetch",
		Description: "Fetch a web page and reduce it to readable text",
		Hints:       []string{"fetch", "web page", "download url"},
		Permissions: []types.Permission{types.PermissionNetwork},
		Execute:     executeWebFetch,
		ExtractArgs: extractWebFetchArgs,
	}
}

func executeWebFetch(ctx context.Context, args map[string]string) (string, error) {
	url := strings.TrimSpace(args["url"])
	if url == "" {
		return "", fmt.Errorf("%w: url", ErrMissingRequiredArg)
	}

	ctx, cancel := context.WithTimeout(ctx, webFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "turnstile/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, webFetchMaxBody))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", url, err)
	}

	text := collapseWhitespace(extractText(doc))
	if len(text) > webFetchMaxOutput {
		text = text[:webFetchMaxOutput] + "\n[truncated]"
	}
	return text, nil
}

// extractText walks the node tree collecting visible text, skipping script
// and style subtrees and breaking lines at block elements.
func extractText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.ElementNode:
			switch node.Data {
			case "script", "style", "noscript":
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				b.WriteByte('\n')
			}
		case html.TextNode:
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseWhitespace(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// extractWebFetchArgs picks the first token that looks like an absolute URL.
func extractWebFetchArgs(prompt string) map[string]string {
	for _, tok := range strings.Fields(prompt) {
		tok = strings.Trim(tok, `"'<>,;`)
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			return map[string]string{"url": tok}
		}
	}
	return map[string]string{}
}
