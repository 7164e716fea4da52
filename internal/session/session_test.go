package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/buildplan"
)

func TestNewSessionDefaults(t *testing.T) {
	s := New("participant-1", 72*time.Hour)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "participant-1", s.ParticipantID)
	assert.Equal(t, StateGreeting, s.State)
	assert.NotNil(t, s.Slots)
	assert.False(t, s.Expired(time.Now()))
}

func TestExpired(t *testing.T) {
	s := New("p", time.Minute)
	s.LastActivityAt = time.Now().UTC().Add(-2 * time.Minute)
	assert.True(t, s.Expired(time.Now().UTC()))

	// Zero TTL disables expiry.
	s.TTL = 0
	assert.False(t, s.Expired(time.Now().UTC()))
}

func TestAppendBumpsActivity(t *testing.T) {
	s := New("p", time.Hour)
	before := s.LastActivityAt

	later := time.Now().UTC().Add(time.Second)
	s.Append(Turn{Role: RoleParticipant, Content: "hi", Timestamp: later})

	require.Len(t, s.Transcript, 1)
	assert.True(t, s.LastActivityAt.After(before))
}

func TestCloneIsDeep(t *testing.T) {
	s := New("p", time.Hour)
	s.Slots["project-name"] = "TaskAPI"
	s.Append(Turn{Role: RoleParticipant, Content: "original"})
	s.Draft = buildplan.NewBuilder().SetProject("TaskAPI").Draft()

	clone := s.Clone()
	clone.Slots["project-name"] = "Other"
	clone.Transcript[0].Content = "mutated"
	clone.Draft.Project = "Other"

	assert.Equal(t, "TaskAPI", s.Slots["project-name"])
	assert.Equal(t, "original", s.Transcript[0].Content)
	assert.Equal(t, "TaskAPI", s.Draft.Project)
}

func TestMemStoreParity(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore()

	s := New("participant-1", time.Hour)
	require.NoError(t, ms.Save(ctx, s))

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, ms.AppendTurn(ctx, s.ID, Turn{
				Role:      RoleParticipant,
				Content:   fmt.Sprintf("turn-%d", n),
				Timestamp: time.Now().UTC(),
			}))
		}(i)
	}
	wg.Wait()

	loaded, err := ms.Load(ctx, "participant-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Transcript, writers)

	// Loaded snapshots are isolated from the store's copy.
	loaded.Slots["x"] = "y"
	again, err := ms.Load(ctx, "participant-1")
	require.NoError(t, err)
	assert.NotContains(t, again.Slots, "x")

	ids, err := ms.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant-1"}, ids)

	swept, err := ms.Sweep(ctx, time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"participant-1"}, swept)
}
