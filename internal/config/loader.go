package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/planforge/planforge/internal/errors"
)

const envPrefix = "PLANFORGE_"

// Load reads configuration from an optional YAML file, overrides with
// PLANFORGE_* environment variables, applies defaults, and validates.
//
// Precedence (highest to lowest):
//  1. Environment variables (PLANFORGE_GATEWAY_LISTEN_ADDR, ...)
//  2. YAML config file
//  3. Defaults
//
// Environment variables split on the first underscore after the prefix:
//
//	PLANFORGE_GATEWAY_LISTEN_ADDR -> gateway.listen_addr
//	PLANFORGE_STORE_NATS_URL      -> store.nats_url
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New(errors.ErrCodeConfigNotFound,
					fmt.Sprintf("config file %s does not exist", configPath))
			}
			return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read config file", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("parse config file %s", configPath), err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// PLANFORGE_GATEWAY_LISTEN_ADDR -> gateway.listen_addr
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "load environment variables", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "unmarshal config", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
