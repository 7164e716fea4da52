// Package config provides configuration loading for planforge.
package config

import (
	"fmt"
	"time"

	"github.com/planforge/planforge/internal/deliberation"
	"github.com/planforge/planforge/internal/dialogue"
	"github.com/planforge/planforge/internal/errors"
)

// Config is the root configuration
type Config struct {
	Log          LogConfig          `koanf:"log"`
	Gateway      GatewayConfig      `koanf:"gateway"`
	Store        StoreConfig        `koanf:"store"`
	Session      SessionConfig      `koanf:"session"`
	Dialogue     DialogueConfig     `koanf:"dialogue"`
	Deliberation DeliberationConfig `koanf:"deliberation"`
	Providers    ProvidersConfig    `koanf:"providers"`
	Extraction   ExtractionConfig   `koanf:"extraction"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GatewayConfig controls the HTTP transport
type GatewayConfig struct {
	ListenAddr string `koanf:"listen_addr"`
	WebhookURL string `koanf:"webhook_url"`
}

// StoreConfig selects and configures the session store backend
type StoreConfig struct {
	Backend    string `koanf:"backend"` // file | nats | memory
	Dir        string `koanf:"dir"`
	NATSURL    string `koanf:"nats_url"`
	NATSBucket string `koanf:"nats_bucket"`
}

// SessionConfig controls session lifecycle
type SessionConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// DialogueConfig controls the elicitation engine
type DialogueConfig struct {
	SlotOrder     []string      `koanf:"slot_order"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryBase     time.Duration `koanf:"retry_base"`
	RetryCap      time.Duration `koanf:"retry_cap"`
}

// RoleConfig is one deliberation role as configuration data
type RoleConfig struct {
	Name        string `koanf:"name"`
	Priority    int    `koanf:"priority"`
	Perspective string `koanf:"perspective"`
}

// DeliberationConfig controls the negotiation engine
type DeliberationConfig struct {
	Enabled     bool         `koanf:"enabled"`
	RoundCap    int          `koanf:"round_cap"`
	Coordinator RoleConfig   `koanf:"coordinator"`
	Specialists []RoleConfig `koanf:"specialists"`
}

// ProviderConfig is one completion provider's settings
type ProviderConfig struct {
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	MaxTokens int           `koanf:"max_tokens"`
	Timeout   time.Duration `koanf:"timeout"`
}

// ProvidersConfig selects and configures completion providers
type ProvidersConfig struct {
	Default   string         `koanf:"default"` // anthropic | openai | none
	Anthropic ProviderConfig `koanf:"anthropic"`
	OpenAI    ProviderConfig `koanf:"openai"`
}

// ExtractionConfig controls the attachment extraction client
type ExtractionConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.Gateway.ListenAddr == "" {
		cfg.Gateway.ListenAddr = ":8080"
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.NATSBucket == "" {
		cfg.Store.NATSBucket = "planforge-sessions"
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 7 * 24 * time.Hour
	}

	if len(cfg.Dialogue.SlotOrder) == 0 {
		cfg.Dialogue.SlotOrder = dialogue.DefaultSlotOrder()
	}
	if cfg.Dialogue.RetryAttempts == 0 {
		cfg.Dialogue.RetryAttempts = 3
	}
	if cfg.Dialogue.RetryBase == 0 {
		cfg.Dialogue.RetryBase = 500 * time.Millisecond
	}
	if cfg.Dialogue.RetryCap == 0 {
		cfg.Dialogue.RetryCap = 5 * time.Second
	}

	if cfg.Deliberation.RoundCap == 0 {
		cfg.Deliberation.RoundCap = deliberation.DefaultRoundCap
	}
	if cfg.Deliberation.Coordinator.Name == "" {
		cfg.Deliberation.Coordinator = RoleConfig{Name: "coordinator", Priority: 100, Perspective: "overall plan coherence"}
	}
	if len(cfg.Deliberation.Specialists) == 0 {
		cfg.Deliberation.Specialists = []RoleConfig{
			{Name: "architect", Priority: 30, Perspective: "system structure and phase ordering"},
			{Name: "pragmatist", Priority: 20, Perspective: "scope control and shippability"},
			{Name: "verifier", Priority: 10, Perspective: "testability and acceptance criteria"},
		}
	}

	if cfg.Providers.Default == "" {
		cfg.Providers.Default = "anthropic"
	}

	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 2 * time.Minute
	}
}

// Validate rejects configurations the engines cannot run with
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "nats", "memory":
	default:
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("store.backend %q must be file, nats, or memory", c.Store.Backend))
	}
	if c.Store.Backend == "nats" && c.Store.NATSURL == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "store.nats_url is required for the nats backend")
	}

	switch c.Providers.Default {
	case "anthropic", "openai", "none":
	default:
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("providers.default %q must be anthropic, openai, or none", c.Providers.Default))
	}

	for _, slot := range c.Dialogue.SlotOrder {
		if !dialogue.KnownSlot(slot) {
			return errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("dialogue.slot_order contains unknown slot %q", slot))
		}
	}

	if c.Deliberation.RoundCap < 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "deliberation.round_cap must be at least 1")
	}
	return nil
}

// DialogueRetry converts the retry settings to the provider policy
func (c *Config) DialogueRetry() (attempts int, base, maxDelay time.Duration) {
	return c.Dialogue.RetryAttempts, c.Dialogue.RetryBase, c.Dialogue.RetryCap
}

// DeliberationRoles converts the configured roles to engine roles
func (c *Config) DeliberationRoles() (deliberation.Role, []deliberation.Role) {
	coordinator := deliberation.Role(c.Deliberation.Coordinator)
	specialists := make([]deliberation.Role, 0, len(c.Deliberation.Specialists))
	for _, r := range c.Deliberation.Specialists {
		specialists = append(specialists, deliberation.Role(r))
	}
	return coordinator, specialists
}
