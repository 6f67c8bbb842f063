package reasoner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"turnstile/internal/types"
)

// PreferredModels orders the model families DefaultModel tries when no
// model is configured.
var PreferredModels = []string{"llama3.2", "llama3.1", "llama3", "mistral", "qwen2.5"}

const defaultOllamaHost = "http://localhost:11434"

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// DefaultOllamaConfig returns the standard local setup. OLLAMA_HOST
// overrides the host.
func DefaultOllamaConfig() OllamaConfig {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = defaultOllamaHost
	}
	return OllamaConfig{
		Host:    host,
		Model:   "llama3.2",
		Timeout: 120 * time.Second,
	}
}

// Ollama talks to a local Ollama server over its native chat API. It
// streams natively.
type Ollama struct {
	config     OllamaConfig
	httpClient *http.Client
}

// NewOllama builds a client, filling blank config fields from defaults.
func NewOllama(cfg OllamaConfig) *Ollama {
	def := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Ollama{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ID returns the backing model name.
func (c *Ollama) ID() string {
	return c.config.Model
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message            ollamaMessage `json:"message"`
	Done               bool          `json:"done"`
	EvalCount          int           `json:"eval_count"`
	PromptEvalCount    int           `json:"prompt_eval_count"`
	EvalDuration       int64         `json:"eval_duration"`
	PromptEvalDuration int64         `json:"prompt_eval_duration"`
}

// Reason performs one non-streaming chat call.
func (c *Ollama) Reason(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.post(ctx, ollamaChatRequest{
		Model:    c.config.Model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if out.Message.Content == "" {
		return nil, fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return types.NewResponse(out.Message.Content, c.ID(), ollamaMetadata(out)), nil
}

// ReasonStream performs one streaming chat call, yielding tokens as the
// server produces them. Token counts arrive with the terminal chunk.
func (c *Ollama) ReasonStream(ctx context.Context, messages []types.Message) (<-chan string, <-chan Final) {
	tokens := make(chan string, 64)
	final := make(chan Final, 1)

	go func() {
		defer close(final)
		resp, err := c.consumeStream(ctx, messages, tokens)
		if err != nil {
			final <- Final{Err: err}
			return
		}
		final <- Final{Response: resp}
	}()

	return tokens, final
}

func (c *Ollama) consumeStream(ctx context.Context, messages []types.Message, tokens chan<- string) (*types.Response, error) {
	defer close(tokens)

	resp, err := c.post(ctx, ollamaChatRequest{
		Model:    c.config.Model,
		Messages: toOllamaMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var content strings.Builder
	meta := map[string]any{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("ollama: decode stream chunk: %w", err)
		}

		if chunk.Message.Content != "" {
			content.WriteString(chunk.Message.Content)
			select {
			case tokens <- chunk.Message.Content:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if chunk.Done {
			meta = ollamaMetadata(chunk)
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ollama: read stream: %w", err)
	}

	return types.NewResponse(content.String(), c.ID(), meta), nil
}

func (c *Ollama) post(ctx context.Context, payload ollamaChatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}

// ListModels returns the names of installed models.
func (c *Ollama) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: unexpected status %s", resp.Status)
	}

	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}

	names := make([]string, len(out.Models))
	for i, m := range out.Models {
		names[i] = m.Name
	}
	return names, nil
}

// DefaultModel picks the first installed model from the preferred families,
// falling back to whatever is installed first.
func (c *Ollama) DefaultModel(ctx context.Context) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", ErrNoModels
	}

	for _, pref := range PreferredModels {
		for _, m := range models {
			if modelFamily(m) == pref {
				return m, nil
			}
		}
	}
	return models[0], nil
}

// modelFamily strips the tag so llama3.2:latest matches the llama3.2 family.
func modelFamily(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[:i]
	}
	return name
}

func toOllamaMessages(messages []types.Message) []ollamaMessage {
	out := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaMessage{Role: wireRole(m.Role), Content: m.Content}
	}
	return out
}

func ollamaMetadata(out ollamaChatResponse) map[string]any {
	return map[string]any{
		"eval_count":              out.EvalCount,
		"prompt_eval_count":       out.PromptEvalCount,
		"eval_duration_ms":        float64(out.EvalDuration) / 1e6,
		"prompt_eval_duration_ms": float64(out.PromptEvalDuration) / 1e6,
	}
}
