// Package config loads and validates the parley configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// Model is the identifier sent with every request.
	Model string `yaml:"model" validate:"required"`

	// MaxTokens caps the model's output per invocation.
	MaxTokens int `yaml:"max_tokens" validate:"gt=0,lte=64000"`

	// SystemPrompt is prepended to every conversation.
	SystemPrompt string `yaml:"system_prompt"`

	// BaseURL overrides the API endpoint, mainly for testing.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// DefaultThreshold is the context threshold for new sessions.
	DefaultThreshold int `yaml:"default_threshold" validate:"gte=0,lte=5"`

	// EnableTools controls whether tool definitions are sent.
	EnableTools bool `yaml:"enable_tools"`

	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration `yaml:"tool_timeout" validate:"gt=0"`

	// MaxImageBytes caps attachment size before encoding.
	MaxImageBytes int64 `yaml:"max_image_bytes" validate:"gt=0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Credentials maps service names to API keys. Environment
	// variables take precedence over this block.
	Credentials map[string]string `yaml:"credentials"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:            "claude-sonnet-4-5",
		MaxTokens:        4096,
		SystemPrompt:     "You are a helpful assistant. Use the available tools when they would improve your answer.",
		DefaultThreshold: 0,
		EnableTools:      true,
		ToolTimeout:      30 * time.Second,
		MaxImageBytes:    5 * 1024 * 1024,
		LogLevel:         "warn",
	}
}

// Load reads the config file at path, layering it over the defaults.
// A missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
