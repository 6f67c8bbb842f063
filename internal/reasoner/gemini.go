package reasoner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"turnstile/internal/types"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the hosted Gemini backend.
type GeminiConfig struct {
	Model  string
	APIKey string
}

// DefaultGeminiConfig returns the hosted setup, reading the credential from
// GEMINI_API_KEY.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:  defaultGeminiModel,
		APIKey: os.Getenv("GEMINI_API_KEY"),
	}
}

// Gemini calls the Gemini API through the official SDK. It is single-shot;
// incremental output comes from the one-chunk adapter.
type Gemini struct {
	config GeminiConfig
	client *genai.Client
}

// NewGemini builds a client. The API key is mandatory.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	def := DefaultGeminiConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.APIKey == "" {
		cfg.APIKey = def.APIKey
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w (set GEMINI_API_KEY)", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{config: cfg, client: client}, nil
}

// ID returns the backing model name.
func (c *Gemini) ID() string {
	return c.config.Model
}

// Reason performs one generate call. System and instruction content rides
// as the system instruction; the remaining turns map onto user/model roles.
func (c *Gemini) Reason(ctx context.Context, messages []types.Message) (*types.Response, error) {
	system, contents := splitGeminiContext(messages)

	var genCfg *genai.GenerateContentConfig
	if system != "" {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	meta := map[string]any{}
	if um := result.UsageMetadata; um != nil {
		meta["prompt_tokens"] = int(um.PromptTokenCount)
		meta["completion_tokens"] = int(um.CandidatesTokenCount)
		meta["total_tokens"] = int(um.TotalTokenCount)
	}
	return types.NewResponse(text, c.ID(), meta), nil
}

// splitGeminiContext separates system-like content from the chat turns,
// preserving the assembled order within each.
func splitGeminiContext(messages []types.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem, types.RoleInstruction:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			// User input and capability results ride as user turns.
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
