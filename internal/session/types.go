package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge/internal/buildplan"
)

// Role identifies who produced a turn
type Role string

const (
	RoleElicitor    Role = "elicitor"
	RoleParticipant Role = "participant"
)

// State names the dialogue engine state a session is in. The engine owns the
// transition rules; the store only persists the value.
type State string

const (
	StateGreeting     State = "greeting"
	StateEliciting    State = "eliciting"
	StateConfirming   State = "confirming"
	StateDeliberating State = "deliberating"
	StateFinalizing   State = "finalizing"
	StateDelivered    State = "delivered"
	StateIdle         State = "idle"
)

// Terminal reports whether the state ends the conversation
func (s State) Terminal() bool {
	return s == StateDelivered
}

// Turn is one message in a session transcript
type Turn struct {
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	Enrichment    string    `json:"enrichment,omitempty"`
}

// Session is the durable conversational context for one participant.
// The transcript is append-only; turns are never rewritten or dropped.
type Session struct {
	ID             string               `json:"id"`
	ParticipantID  string               `json:"participant_id"`
	CreatedAt      time.Time            `json:"created_at"`
	LastActivityAt time.Time            `json:"last_activity_at"`
	State          State                `json:"state"`
	ResumeState    State                `json:"resume_state,omitempty"` // state to re-enter when leaving Idle
	Transcript     []Turn               `json:"transcript"`
	Slots          map[string]string    `json:"slots"`
	PendingSlot    string               `json:"pending_slot,omitempty"` // slot of the one outstanding question
	Draft          *buildplan.BuildPlan `json:"draft,omitempty"`
	TTL            time.Duration        `json:"ttl"`
}

// New creates a session for a participant with the given time-to-live
func New(participantID string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.New().String(),
		ParticipantID:  participantID,
		CreatedAt:      now,
		LastActivityAt: now,
		State:          StateGreeting,
		Slots:          map[string]string{},
		TTL:            ttl,
	}
}

// Touch bumps the last-activity timestamp
func (s *Session) Touch() {
	s.LastActivityAt = time.Now().UTC()
}

// Expired reports whether the session TTL has elapsed at the given instant
func (s *Session) Expired(now time.Time) bool {
	if s.TTL <= 0 {
		return false
	}
	return now.Sub(s.LastActivityAt) > s.TTL
}

// Append adds a turn to the transcript and bumps activity
func (s *Session) Append(turn Turn) {
	s.Transcript = append(s.Transcript, turn)
	if turn.Timestamp.After(s.LastActivityAt) {
		s.LastActivityAt = turn.Timestamp
	} else {
		s.Touch()
	}
}

// Clone returns a deep copy so callers can mutate freely before saving
func (s *Session) Clone() *Session {
	out := *s
	out.Transcript = append([]Turn(nil), s.Transcript...)
	out.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	if s.Draft != nil {
		out.Draft = s.Draft.Clone()
	}
	return &out
}
