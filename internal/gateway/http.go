package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/log"
)

// HTTPGateway receives inbound turns over HTTP and replies synchronously
// with the engine's next question.
type HTTPGateway struct {
	echo    *echo.Echo
	handler Handler
	logger  *log.Logger
}

// NewHTTPGateway creates the HTTP transport around a turn handler
func NewHTTPGateway(handler Handler, logger *log.Logger) *HTTPGateway {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	g := &HTTPGateway{echo: e, handler: handler, logger: logger}
	e.POST("/v1/turns", g.handleTurn)
	e.GET("/healthz", g.handleHealth)
	return g
}

type turnResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (g *HTTPGateway) handleTurn(c echo.Context) error {
	var in Inbound
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad-request", Message: "malformed turn payload"})
	}
	if in.SenderID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "bad-request", Message: "sender_id is required"})
	}

	reply, err := g.handler.HandleTurn(c.Request().Context(), in.SenderID, in.Turn())
	if err != nil {
		g.logger.WithError(err).ErrorContext(c.Request().Context(), "turn handling failed",
			"sender_id", in.SenderID)
		status := http.StatusInternalServerError
		if errors.IsExternalService(err) {
			status = http.StatusBadGateway
		}
		return c.JSON(status, errorResponse{Code: string(errors.CodeOf(err)), Message: "turn could not be processed"})
	}

	return c.JSON(http.StatusOK, turnResponse{Reply: reply.Content})
}

func (g *HTTPGateway) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start blocks serving HTTP until Shutdown or a listener error
func (g *HTTPGateway) Start(addr string) error {
	g.logger.Info("gateway listening", "addr", addr)
	return g.echo.Start(addr)
}

// Shutdown drains in-flight requests
func (g *HTTPGateway) Shutdown(ctx context.Context) error {
	return g.echo.Shutdown(ctx)
}

// ServeHTTP exposes the gateway as an http.Handler
func (g *HTTPGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.echo.ServeHTTP(w, r)
}

// WebhookSender delivers outbound content by POSTing it to a participant
// callback URL. It is the outward half of the HTTP transport; the artifact
// drop goes through here.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a sender that POSTs deliveries to url
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WebhookSender{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	ParticipantID string `json:"participant_id"`
	Content       string `json:"content"`
}

// Send implements the dialogue engine's Sender
func (s *WebhookSender) Send(ctx context.Context, participantID, content string) error {
	body, err := json.Marshal(webhookPayload{ParticipantID: participantID, Content: content})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeServiceUnavailable, "webhook delivery failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New(errors.ErrCodeServiceBadResponse,
			fmt.Sprintf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}
