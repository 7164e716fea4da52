package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/session"
)

type handlerFunc func(ctx context.Context, participantID string, turn session.Turn) (session.Turn, error)

func (f handlerFunc) HandleTurn(ctx context.Context, participantID string, turn session.Turn) (session.Turn, error) {
	return f(ctx, participantID, turn)
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: log.LevelError, Format: log.FormatText, Output: io.Discard})
}

func TestHTTPGatewayTurnRoundTrip(t *testing.T) {
	var gotParticipant string
	var gotTurn session.Turn
	gateway := NewHTTPGateway(handlerFunc(func(ctx context.Context, participantID string, turn session.Turn) (session.Turn, error) {
		gotParticipant = participantID
		gotTurn = turn
		return session.Turn{Role: session.RoleElicitor, Content: "What should the project be called?"}, nil
	}), quietLogger())

	body := `{"sender_id":"alice","text":"hi there","attachment_ref":"doc://notes.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	gateway.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotParticipant)
	assert.Equal(t, "hi there", gotTurn.Content)
	assert.Equal(t, "doc://notes.pdf", gotTurn.AttachmentRef)
	assert.Equal(t, session.RoleParticipant, gotTurn.Role)
	assert.False(t, gotTurn.Timestamp.IsZero())

	var resp turnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "What should the project be called?", resp.Reply)
}

func TestHTTPGatewayRejectsMissingSender(t *testing.T) {
	gateway := NewHTTPGateway(handlerFunc(func(ctx context.Context, participantID string, turn session.Turn) (session.Turn, error) {
		t.Fatal("handler must not run")
		return session.Turn{}, nil
	}), quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	gateway.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPGatewayMapsServiceErrorsToBadGateway(t *testing.T) {
	gateway := NewHTTPGateway(handlerFunc(func(ctx context.Context, participantID string, turn session.Turn) (session.Turn, error) {
		return session.Turn{}, errors.New(errors.ErrCodeServiceExhausted, "provider retries exhausted")
	}), quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(`{"sender_id":"bob","text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	gateway.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(errors.ErrCodeServiceExhausted), resp.Code)
}

func TestHTTPGatewayHealth(t *testing.T) {
	gateway := NewHTTPGateway(handlerFunc(func(ctx context.Context, participantID string, turn session.Turn) (session.Turn, error) {
		return session.Turn{}, nil
	}), quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	gateway.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookSenderDelivers(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL, 0)
	require.NoError(t, sender.Send(context.Background(), "alice", `{"legend_version":"v1"}`))
	assert.Equal(t, "alice", got.ParticipantID)
	assert.Contains(t, got.Content, "legend_version")
}

func TestWebhookSenderSurfacesFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL, 0)
	err := sender.Send(context.Background(), "alice", "payload")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeServiceBadResponse, errors.CodeOf(err))
}

func TestLoopbackKeepsDeliveriesInOrder(t *testing.T) {
	loopback := NewLoopback()
	require.NoError(t, loopback.Send(context.Background(), "alice", "first"))
	require.NoError(t, loopback.Send(context.Background(), "alice", "second"))
	require.NoError(t, loopback.Send(context.Background(), "bob", "other"))

	assert.Equal(t, []string{"first", "second"}, loopback.Deliveries("alice"))
	assert.Equal(t, []string{"other"}, loopback.Deliveries("bob"))
}
