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

const (
	defaultDeepSeekBaseURL = "https://api.deepseek.com"
	defaultDeepSeekModel   = "deepseek-chat"
)

// DeepSeekConfig configures the hosted DeepSeek backend, which speaks the
// OpenAI-compatible chat completions protocol.
type DeepSeekConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// DefaultDeepSeekConfig returns the hosted setup, reading the credential
// from DEEPSEEK_API_KEY.
func DefaultDeepSeekConfig() DeepSeekConfig {
	return DeepSeekConfig{
		BaseURL: defaultDeepSeekBaseURL,
		Model:   defaultDeepSeekModel,
		APIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		Timeout: 120 * time.Second,
	}
}

// DeepSeek is a hosted chat completions client. It streams natively over
// server-sent events.
type DeepSeek struct {
	config     DeepSeekConfig
	httpClient *http.Client
}

// NewDeepSeek builds a client. The API key is mandatory.
func NewDeepSeek(cfg DeepSeekConfig) (*DeepSeek, error) {
	def := DefaultDeepSeekConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.APIKey == "" {
		cfg.APIKey = def.APIKey
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepseek: %w (set DEEPSEEK_API_KEY)", ErrMissingAPIKey)
	}

	return &DeepSeek{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ID returns the backing model name.
func (c *DeepSeek) ID() string {
	return c.config.Model
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekRequest struct {
	Model    string            `json:"model"`
	Messages []deepseekMessage `json:"messages"`
	Stream   bool              `json:"stream"`
}

type deepseekUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type deepseekResponse struct {
	Choices []struct {
		Message deepseekMessage `json:"message"`
	} `json:"choices"`
	Usage deepseekUsage `json:"usage"`
}

type deepseekStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *deepseekUsage `json:"usage"`
}

// Reason performs one non-streaming chat completion.
func (c *DeepSeek) Reason(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.post(ctx, deepseekRequest{
		Model:    c.config.Model,
		Messages: toDeepSeekMessages(messages),
		Stream:   false,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out deepseekResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("deepseek: decode response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("deepseek: %w", ErrEmptyResponse)
	}

	return types.NewResponse(out.Choices[0].Message.Content, c.ID(), usageMetadata(out.Usage)), nil
}

// ReasonStream performs one streaming chat completion over SSE.
func (c *DeepSeek) ReasonStream(ctx context.Context, messages []types.Message) (<-chan string, <-chan Final) {
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

func (c *DeepSeek) consumeStream(ctx context.Context, messages []types.Message, tokens chan<- string) (*types.Response, error) {
	defer close(tokens)

	resp, err := c.post(ctx, deepseekRequest{
		Model:    c.config.Model,
		Messages: toDeepSeekMessages(messages),
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
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk deepseekStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, fmt.Errorf("deepseek: decode stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			meta = usageMetadata(*chunk.Usage)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		select {
		case tokens <- delta:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("deepseek: read stream: %w", err)
	}

	return types.NewResponse(content.String(), c.ID(), meta), nil
}

func (c *DeepSeek) post(ctx context.Context, payload deepseekRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("deepseek: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("deepseek: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepseek: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("deepseek: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}

func toDeepSeekMessages(messages []types.Message) []deepseekMessage {
	out := make([]deepseekMessage, len(messages))
	for i, m := range messages {
		out[i] = deepseekMessage{Role: wireRole(m.Role), Content: m.Content}
	}
	return out
}

func usageMetadata(u deepseekUsage) map[string]any {
	return map[string]any{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}
