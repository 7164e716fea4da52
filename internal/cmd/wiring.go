package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/planforge/planforge/internal/codec"
	"github.com/planforge/planforge/internal/config"
	"github.com/planforge/planforge/internal/deliberation"
	"github.com/planforge/planforge/internal/dialogue"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/extraction"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/provider"
	"github.com/planforge/planforge/internal/session"
)

// newStore builds the configured session store backend
func newStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		dir := cfg.Store.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "resolve home directory for session store", err)
			}
			dir = filepath.Join(home, ".local", "share", "planforge", "sessions")
		}
		return session.NewFileStore(dir)
	case "nats":
		return session.NewNATSStore(cfg.Store.NATSURL, cfg.Store.NATSBucket)
	case "memory":
		return session.NewMemStore(), nil
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, "unknown store backend: "+cfg.Store.Backend)
	}
}

// newCompletion builds the configured completion provider; nil means the
// engines run on canned text and deterministic heuristics only.
func newCompletion(cfg *config.Config) (provider.Completion, error) {
	switch cfg.Providers.Default {
	case "anthropic":
		p := cfg.Providers.Anthropic
		if p.APIKey == "" {
			p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if p.APIKey == "" {
			return nil, nil
		}
		return provider.NewAnthropicClient(provider.AnthropicConfig{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			Model:     p.Model,
			MaxTokens: p.MaxTokens,
			Timeout:   p.Timeout,
		})
	case "openai":
		p := cfg.Providers.OpenAI
		if p.APIKey == "" {
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if p.APIKey == "" {
			return nil, nil
		}
		return provider.NewOpenAIClient(provider.OpenAIConfig{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			Model:     p.Model,
			MaxTokens: p.MaxTokens,
			Timeout:   p.Timeout,
		})
	default:
		return nil, nil
	}
}

// newEngine assembles the dialogue engine and its collaborators
func newEngine(cfg *config.Config, store session.Store, sender dialogue.Sender, logger *log.Logger) (*dialogue.Engine, error) {
	completion, err := newCompletion(cfg)
	if err != nil {
		return nil, err
	}

	attempts, base, maxDelay := cfg.DialogueRetry()
	retry := provider.RetryPolicy{MaxAttempts: attempts, BaseDelay: base, MaxDelay: maxDelay}

	var refiner dialogue.Refiner
	if cfg.Deliberation.Enabled {
		coordinator, specialists := cfg.DeliberationRoles()
		engine, err := deliberation.New(deliberation.Config{
			Coordinator: coordinator,
			Specialists: specialists,
			Proposer:    deliberation.NewCompletionProposer(completion, retry),
			RoundCap:    cfg.Deliberation.RoundCap,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		refiner = engine
	}

	var dispatcher *extraction.Dispatcher
	if cfg.Extraction.BaseURL != "" {
		extractor := extraction.NewHTTPExtractor(cfg.Extraction.BaseURL, cfg.Extraction.Timeout)
		dispatcher = extraction.NewDispatcher(extractor, cfg.Extraction.Timeout, logger)
	}

	return dialogue.New(dialogue.Config{
		Store:      store,
		Completion: completion,
		Retry:      retry,
		Dispatcher: dispatcher,
		Refiner:    refiner,
		Codec:      codec.New(codec.NewRegistry()),
		Legend:     codec.LegendVersion1,
		Sender:     sender,
		SlotOrder:  cfg.Dialogue.SlotOrder,
		SessionTTL: cfg.Session.TTL,
		Logger:     logger,
	}), nil
}

// sweepLoop expires idle sessions in the background until ctx ends
func sweepLoop(ctx context.Context, store session.Store, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			swept, err := store.Sweep(ctx, now.UTC())
			if err != nil {
				logger.WithError(err).Warn("session sweep failed")
				continue
			}
			if len(swept) > 0 {
				logger.Info("swept expired sessions", "count", len(swept))
			}
		}
	}
}
