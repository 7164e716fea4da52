package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/dialogue"
	"github.com/planforge/planforge/internal/gateway"
	"github.com/planforge/planforge/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway and dialogue engine",
	Long: `Start the HTTP transport: inbound turns arrive on POST /v1/turns, the
dialogue engine replies with its next question, and finalized plan artifacts
are delivered to the configured webhook.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.DefaultLogger()

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var sender dialogue.Sender
	if cfg.Gateway.WebhookURL != "" {
		sender = gateway.NewWebhookSender(cfg.Gateway.WebhookURL, 30*time.Second)
	}

	engine, err := newEngine(cfg, store, sender, logger)
	if err != nil {
		return err
	}

	httpGateway := gateway.NewHTTPGateway(engine, logger)

	ctx := cmd.Context()
	go sweepLoop(ctx, store, time.Hour, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpGateway.Start(cfg.Gateway.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpGateway.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
