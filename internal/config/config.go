// Package config loads turnstile configuration from YAML, with
// environment variables overriding file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"turnstile/internal/router"
)

// Config holds all turnstile configuration.
type Config struct {
	// Backend selects the reasoning backend: ollama, deepseek, gemini.
	Backend string `yaml:"backend"`

	// Model overrides the backend's default model.
	Model string `yaml:"model"`

	// Persona is inline persona text. When set it wins over PersonaPath.
	Persona string `yaml:"persona"`

	// PersonaPath points at a file holding the persona text.
	PersonaPath string `yaml:"persona_path"`

	Ollama   OllamaConfig   `yaml:"ollama"`
	DeepSeek DeepSeekConfig `yaml:"deepseek"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Skills   SkillsConfig   `yaml:"skills"`
	Sessions SessionsConfig `yaml:"sessions"`
	Router   RouterConfig   `yaml:"router"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	Host string `yaml:"host"`
}

// DeepSeekConfig configures the hosted DeepSeek backend.
type DeepSeekConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// GeminiConfig configures the hosted Gemini backend.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// SkillsConfig configures the instruction-bundle loader.
type SkillsConfig struct {
	Dir string `yaml:"dir"`
}

// SessionsConfig configures session persistence.
type SessionsConfig struct {
	Dir   string `yaml:"dir"`
	Store string `yaml:"store"` // file or sqlite
}

// RouterConfig configures intent routing.
type RouterConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`
}

// defaultPersona is the built-in fallback when neither persona nor
// persona_path is configured.
const defaultPersona = "You are a concise, capable assistant. Answer directly, " +
	"show your reasoning when it helps, and say so when you are unsure."

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	base := baseDir()
	return &Config{
		Backend:  "ollama",
		Ollama:   OllamaConfig{Host: "http://localhost:11434"},
		DeepSeek: DeepSeekConfig{BaseURL: "https://api.deepseek.com"},
		Skills:   SkillsConfig{Dir: filepath.Join(base, "skills")},
		Sessions: SessionsConfig{Dir: filepath.Join(base, "sessions"), Store: "file"},
		Router:   RouterConfig{Threshold: router.DefaultThreshold},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".turnstile"
	}
	return filepath.Join(home, ".turnstile")
}

// Load reads configuration from a YAML file. A missing file is fine:
// defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file; run on defaults and environment.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TURNSTILE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("TURNSTILE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("TURNSTILE_PERSONA_PATH"); v != "" {
		c.PersonaPath = v
	}
	if v := os.Getenv("TURNSTILE_SKILLS_DIR"); v != "" {
		c.Skills.Dir = v
	}
	if v := os.Getenv("TURNSTILE_SESSIONS_DIR"); v != "" {
		c.Sessions.Dir = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Ollama.Host = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		c.DeepSeek.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
}

// Validate rejects configurations the rest of the system cannot honor.
func (c *Config) Validate() error {
	switch c.Backend {
	case "ollama", "deepseek", "gemini":
	default:
		return fmt.Errorf("unknown backend %q (valid: ollama, deepseek, gemini)", c.Backend)
	}

	switch c.Sessions.Store {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown session store %q (valid: file, sqlite)", c.Sessions.Store)
	}

	if c.Router.Threshold < 0 || c.Router.Threshold > 1 {
		return fmt.Errorf("router threshold %v out of range [0, 1]", c.Router.Threshold)
	}

	return nil
}

// ResolvePersona returns the persona text for this run: inline text wins,
// then the persona file, then the built-in default.
func (c *Config) ResolvePersona() (string, error) {
	if strings.TrimSpace(c.Persona) != "" {
		return strings.TrimSpace(c.Persona), nil
	}
	if c.PersonaPath != "" {
		data, err := os.ReadFile(c.PersonaPath)
		if err != nil {
			return "", fmt.Errorf("read persona file %s: %w", c.PersonaPath, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return defaultPersona, nil
}
