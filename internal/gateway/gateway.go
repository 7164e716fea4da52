// Package gateway adapts messaging transports to the dialogue engine. The
// engine sees participants and turns; the gateway owns addresses, payload
// shapes, and delivery.
package gateway

import (
	"context"
	"time"

	"github.com/planforge/planforge/internal/session"
)

// Inbound is one message arriving from a participant
type Inbound struct {
	SenderID      string    `json:"sender_id"`
	Text          string    `json:"text"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
}

// Handler processes one inbound turn and returns the engine's reply.
// The dialogue engine satisfies this.
type Handler interface {
	HandleTurn(ctx context.Context, participantID string, turn session.Turn) (session.Turn, error)
}

// Turn converts the transport payload into a session turn
func (in Inbound) Turn() session.Turn {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return session.Turn{
		Role:          session.RoleParticipant,
		Content:       in.Text,
		AttachmentRef: in.AttachmentRef,
		Timestamp:     ts,
	}
}
