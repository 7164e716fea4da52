package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/dialogue"
	"github.com/planforge/planforge/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Gateway.ListenAddr)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, dialogue.DefaultSlotOrder(), cfg.Dialogue.SlotOrder)
	assert.Equal(t, 8, cfg.Deliberation.RoundCap)
	assert.Equal(t, "coordinator", cfg.Deliberation.Coordinator.Name)
	assert.Len(t, cfg.Deliberation.Specialists, 3)
	assert.Equal(t, "anthropic", cfg.Providers.Default)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
  format: json
gateway:
  listen_addr: ":9999"
store:
  backend: nats
  nats_url: nats://localhost:4222
session:
  ttl: 48h
dialogue:
  slot_order:
    - description
    - project-name
    - success-criteria
deliberation:
  round_cap: 4
  specialists:
    - name: architect
      priority: 5
      perspective: structure
providers:
  default: openai
  openai:
    api_key: sk-test
    model: gpt-4o
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9999", cfg.Gateway.ListenAddr)
	assert.Equal(t, "nats", cfg.Store.Backend)
	assert.Equal(t, "nats://localhost:4222", cfg.Store.NATSURL)
	assert.Equal(t, 48*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"description", "project-name", "success-criteria"}, cfg.Dialogue.SlotOrder)
	assert.Equal(t, 4, cfg.Deliberation.RoundCap)
	require.Len(t, cfg.Deliberation.Specialists, 1)
	assert.Equal(t, "architect", cfg.Deliberation.Specialists[0].Name)
	assert.Equal(t, "openai", cfg.Providers.Default)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  listen_addr: \":9999\"\n"), 0o600))

	t.Setenv("PLANFORGE_GATEWAY_LISTEN_ADDR", ":7777")
	t.Setenv("PLANFORGE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Gateway.ListenAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.CodeOf(err))
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Store.Backend = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
}

func TestValidateRequiresNATSURL(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Store.Backend = "nats"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats_url")
}

func TestValidateRejectsUnknownSlot(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Dialogue.SlotOrder = []string{"project-name", "budget"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
}

func TestDeliberationRoles(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	coordinator, specialists := cfg.DeliberationRoles()
	assert.Equal(t, "coordinator", coordinator.Name)
	require.Len(t, specialists, 3)
	assert.Greater(t, specialists[0].Priority, specialists[2].Priority)
}
