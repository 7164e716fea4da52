// Package session provides durable, resumable storage of conversational
// state keyed by participant identity.
//
// Mutations to a given session are serialized per participant key so rapid
// near-simultaneous turns cannot interleave and corrupt the transcript;
// sessions of different participants are fully independent. The store is
// polymorphic over its backing medium — a local durable file tree or a NATS
// JetStream key-value bucket — behind one interface.
package session

import (
	"context"
	"time"
)

// Store is the persistence contract for sessions
type Store interface {
	// Load returns the session for a participant, or a STORE-001 error when
	// none exists.
	Load(ctx context.Context, participantID string) (*Session, error)

	// Save persists the full session snapshot. Only complete, stable
	// snapshots are ever written; a half-applied mutation is never persisted.
	Save(ctx context.Context, s *Session) error

	// AppendTurn atomically appends one turn to the session with the given
	// id. Concurrent appends to the same session are serialized; both turns
	// always land in the transcript in some total order.
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error

	// Delete removes a participant's session. Deleting an absent session is
	// not an error.
	Delete(ctx context.Context, participantID string) error

	// List returns the participant ids of every stored session, sorted.
	List(ctx context.Context) ([]string, error)

	// Sweep removes every session whose TTL elapsed before now and returns
	// the participant ids swept.
	Sweep(ctx context.Context, now time.Time) ([]string, error)

	// Close releases backing resources.
	Close() error
}
