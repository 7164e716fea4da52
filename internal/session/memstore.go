package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/planforge/planforge/internal/errors"
)

// MemStore is an in-memory Store for tests and the local chat REPL.
// It honors the same per-session serialization contract as the durable
// backends.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*Session // keyed by participant id
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{sessions: map[string]*Session{}}
}

// Load implements Store
func (ms *MemStore) Load(ctx context.Context, participantID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.sessions[participantID]
	if !ok {
		return nil, errors.NewStoreNotFoundError(participantID)
	}
	return s.Clone(), nil
}

// Save implements Store
func (ms *MemStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions[s.ParticipantID] = s.Clone()
	return nil
}

// AppendTurn implements Store
func (ms *MemStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, s := range ms.sessions {
		if s.ID == sessionID {
			s.Append(turn)
			return nil
		}
	}
	return errors.New(errors.ErrCodeStoreNotFound, "no session with id "+sessionID)
}

// Delete implements Store
func (ms *MemStore) Delete(ctx context.Context, participantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, participantID)
	return nil
}

// List implements Store
func (ms *MemStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ids := make([]string, 0, len(ms.sessions))
	for participantID := range ms.sessions {
		ids = append(ids, participantID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Sweep implements Store
func (ms *MemStore) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var swept []string
	for participantID, s := range ms.sessions {
		if s.Expired(now) {
			delete(ms.sessions, participantID)
			swept = append(swept, participantID)
		}
	}
	return swept, nil
}

// Close implements Store
func (ms *MemStore) Close() error {
	return nil
}
