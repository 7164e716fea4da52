package gateway

import (
	"context"
	"sync"
)

// Loopback is the in-process transport used by the chat command and tests.
// Deliveries land in memory, keyed by participant.
type Loopback struct {
	mu         sync.Mutex
	deliveries map[string][]string
}

// NewLoopback creates an empty loopback transport
func NewLoopback() *Loopback {
	return &Loopback{deliveries: map[string][]string{}}
}

// Send implements the dialogue engine's Sender
func (l *Loopback) Send(ctx context.Context, participantID, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries[participantID] = append(l.deliveries[participantID], content)
	return nil
}

// Deliveries returns everything sent to a participant, in order
func (l *Loopback) Deliveries(participantID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.deliveries[participantID]...)
}
