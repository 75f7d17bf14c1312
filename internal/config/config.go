// Package config loads the process configuration from YAML with
// environment-variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/ensemble/internal/chat"
)

// Config is the full process configuration.
type Config struct {
	Discord       DiscordConfig       `yaml:"discord"`
	LLM           LLMConfig           `yaml:"llm"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Personas      PersonasConfig      `yaml:"personas"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DiscordConfig holds the Discord connection settings.
type DiscordConfig struct {
	Token        string `yaml:"token"`
	WebhookCache string `yaml:"webhook_cache"`
}

// ProviderConfig configures one LLM backend. Type selects the client:
// "openai" (any OpenAI-compatible host via base_url) or "anthropic".
type ProviderConfig struct {
	Type         string `yaml:"type"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// LLMConfig names the providers and which one serves routing versus
// persona responses. Router and responder may use different backends.
type LLMConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`

	RouterProvider string `yaml:"router_provider"`
	RouterModel    string `yaml:"router_model"`

	ResponderProvider string `yaml:"responder_provider"`
	ResponderModel    string `yaml:"responder_model"`
}

// Duration wraps time.Duration so YAML values like "30m" decode.
type Duration time.Duration

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ConversationsConfig bounds the conversation store.
type ConversationsConfig struct {
	MaxMessagesPerConversation int      `yaml:"max_messages_per_conversation"`
	MaxConversations           int      `yaml:"max_conversations"`
	StaleThreshold             Duration `yaml:"stale_threshold"`
}

// PersonasConfig points at the persona directory file.
type PersonasConfig struct {
	File                 string `yaml:"file"`
	DefaultKnowledgeBase string `yaml:"default_knowledge_base"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the config file, expands ${ENV_VAR} references, applies
// defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, chat.ErrConfig(fmt.Sprintf("config: cannot read %s", path), err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, chat.ErrConfig(fmt.Sprintf("config: cannot parse %s", path), err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Conversations.MaxMessagesPerConversation <= 0 {
		c.Conversations.MaxMessagesPerConversation = 200
	}
	if c.Conversations.MaxConversations <= 0 {
		c.Conversations.MaxConversations = 100
	}
	if c.Conversations.StaleThreshold <= 0 {
		c.Conversations.StaleThreshold = Duration(30 * time.Minute)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.LLM.ResponderProvider == "" {
		c.LLM.ResponderProvider = c.LLM.RouterProvider
	}
}

// Validate checks cross-field consistency. The Discord token is checked by
// serve, not here, so one-shot commands work without it.
func (c *Config) Validate() error {
	if len(c.LLM.Providers) == 0 {
		return chat.ErrConfig("config: at least one llm provider is required", nil)
	}
	for name, p := range c.LLM.Providers {
		switch p.Type {
		case "openai", "anthropic":
		case "":
			return chat.ErrConfig(fmt.Sprintf("config: provider %q missing type", name), nil)
		default:
			return chat.ErrConfig(fmt.Sprintf("config: provider %q has unknown type %q", name, p.Type), nil)
		}
	}
	if c.LLM.RouterProvider == "" {
		return chat.ErrConfig("config: llm.router_provider is required", nil)
	}
	if _, ok := c.LLM.Providers[c.LLM.RouterProvider]; !ok {
		return chat.ErrConfig(fmt.Sprintf("config: router_provider %q not defined", c.LLM.RouterProvider), nil)
	}
	if _, ok := c.LLM.Providers[c.LLM.ResponderProvider]; !ok {
		return chat.ErrConfig(fmt.Sprintf("config: responder_provider %q not defined", c.LLM.ResponderProvider), nil)
	}
	return nil
}
