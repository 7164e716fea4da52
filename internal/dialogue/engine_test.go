package dialogue

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/codec"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/extraction"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/provider"
	"github.com/planforge/planforge/internal/session"
)

type failingCompletion struct {
	calls int
}

func (f *failingCompletion) Complete(ctx context.Context, req provider.Request) (string, error) {
	f.calls++
	return "", errors.New(errors.ErrCodeServiceUnavailable, "provider down")
}

func (f *failingCompletion) Name() string { return "failing" }

type recordingSender struct {
	mu       sync.Mutex
	payloads []string
}

func (s *recordingSender) Send(ctx context.Context, participantID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, content)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: log.LevelError, Format: log.FormatText, Output: io.Discard})
}

func newTestEngine(t *testing.T, overrides func(*Config)) (*Engine, session.Store, *recordingSender) {
	t.Helper()
	store := session.NewMemStore()
	sender := &recordingSender{}
	cfg := Config{
		Store:  store,
		Codec:  codec.New(codec.NewRegistry()),
		Sender: sender,
		Retry:  provider.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		Logger: quietLogger(),
	}
	if overrides != nil {
		overrides(&cfg)
	}
	return New(cfg), store, sender
}

func say(t *testing.T, engine *Engine, participant, content string) session.Turn {
	t.Helper()
	reply, err := engine.HandleTurn(context.Background(), participant, session.Turn{Content: content})
	require.NoError(t, err)
	return reply
}

func TestGreetingAsksFirstSlot(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)

	reply := say(t, engine, "alice", "hi, I want to build something")
	assert.Equal(t, session.RoleElicitor, reply.Role)
	assert.Contains(t, reply.Content, cannedQuestions[SlotProjectName])
	assert.Equal(t, 1, strings.Count(reply.Content, "?"), "exactly one question per turn")

	sess, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, session.StateEliciting, sess.State)
	assert.Equal(t, SlotProjectName, sess.PendingSlot)
	assert.Len(t, sess.Transcript, 2)
}

func TestOneQuestionPerTurnThroughChecklist(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)

	answers := []string{
		"hello",
		"TaskAPI",
		"a task tracking service with deadlines",
		"language: go, db: postgres",
		"no documents",
		"balanced",
		"cmd/\ninternal/",
	}
	for _, content := range answers {
		reply := say(t, engine, "alice", content)
		assert.Equal(t, 1, strings.Count(reply.Content, "?"), "reply %q", reply.Content)
	}

	sess, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, SlotSuccessCriteria, sess.PendingSlot)
	assert.Equal(t, "TaskAPI", sess.Slots[SlotProjectName])
	assert.Equal(t, session.StateEliciting, sess.State)
}

func TestFullElicitationDeliversCompressedPlan(t *testing.T) {
	engine, store, sender := newTestEngine(t, nil)

	for _, content := range []string{
		"hello",
		"TaskAPI",
		"a task tracking service with deadlines",
		"language: go, db: postgres",
		"no documents",
		"conservative",
		"cmd/\ninternal/",
	} {
		say(t, engine, "alice", content)
	}

	confirmAsk := say(t, engine, "alice", "tasks can be created\ntasks can be completed")
	assert.Contains(t, confirmAsk.Content, "finalize")

	done := say(t, engine, "alice", "yes")
	assert.Contains(t, done.Content, "fingerprint")
	assert.Contains(t, done.Content, "Starter prompt")

	sess, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, session.StateDelivered, sess.State)
	require.NotNil(t, sess.Draft)
	assert.True(t, sess.Draft.Finalized)
	assert.NotEmpty(t, sess.Draft.Fingerprint)

	// the artifact sent out decompresses to the delivered plan
	require.Len(t, sender.payloads, 1)
	artifact, err := codec.UnmarshalArtifact([]byte(sender.payloads[0]))
	require.NoError(t, err)
	result, err := codec.New(codec.NewRegistry()).Decompress(artifact)
	require.NoError(t, err)
	assert.Equal(t, "TaskAPI", result.Plan.Project)
	assert.Equal(t, sess.Draft.Fingerprint, result.Plan.Fingerprint)
	assert.Empty(t, result.Unrecognized)

	// conservative risk tolerance pushes verification to P0
	for _, phase := range result.Plan.Phases {
		if phase.Category == buildplan.PhaseVerification {
			require.NotEmpty(t, phase.Tasks)
			assert.Equal(t, buildplan.PriorityP0, phase.Tasks[0].Priority)
		}
	}
}

func TestProviderOutageFallsBackToCannedQuestions(t *testing.T) {
	failing := &failingCompletion{}
	engine, store, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Completion = failing
	})

	reply := say(t, engine, "bob", "hi")
	assert.Contains(t, reply.Content, cannedQuestions[SlotProjectName])
	assert.Equal(t, 2, failing.calls, "bounded retries, then canned text")

	// the outage never aborts the session; the next answer still lands
	say(t, engine, "bob", "InventoryHub")
	sess, err := store.Load(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "InventoryHub", sess.Slots[SlotProjectName])
	assert.Equal(t, session.StateEliciting, sess.State)
}

func TestProviderPhrasingUsedWhenWellFormed(t *testing.T) {
	scripted := completionFunc(func(ctx context.Context, req provider.Request) (string, error) {
		return "What shall we call this project?", nil
	})
	engine, _, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Completion = scripted
	})

	reply := say(t, engine, "carol", "hi")
	assert.Contains(t, reply.Content, "What shall we call this project?")
}

func TestMalformedProviderQuestionFallsBackToCanned(t *testing.T) {
	scripted := completionFunc(func(ctx context.Context, req provider.Request) (string, error) {
		return "First question? Second question?", nil
	})
	engine, _, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Completion = scripted
	})

	reply := say(t, engine, "carol", "hi")
	assert.Contains(t, reply.Content, cannedQuestions[SlotProjectName])
	assert.Equal(t, 1, strings.Count(reply.Content, "?"))
}

func TestStopPausesAndResumePreservesEverything(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)

	say(t, engine, "dave", "hi")
	say(t, engine, "dave", "TaskAPI")

	paused := say(t, engine, "dave", "pause")
	assert.Contains(t, paused.Content, "saved")

	sess, err := store.Load(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, sess.State)
	assert.Equal(t, session.StateEliciting, sess.ResumeState)
	assert.Equal(t, "TaskAPI", sess.Slots[SlotProjectName])

	// the wake-up message re-asks instead of consuming the greeting as an answer
	resumed := say(t, engine, "dave", "ok I'm back")
	assert.Contains(t, resumed.Content, cannedQuestions[SlotDescription])

	sess, err = store.Load(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, session.StateEliciting, sess.State)
	assert.Empty(t, sess.Slots[SlotDescription], "wake-up message must not fill the pending slot")
}

func TestSentenceContainingStopIsNotAStopIntent(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)

	say(t, engine, "erin", "hi")
	say(t, engine, "erin", "BusStop Tracker")

	sess, err := store.Load(context.Background(), "erin")
	require.NoError(t, err)
	assert.Equal(t, "BusStop Tracker", sess.Slots[SlotProjectName])
	assert.Equal(t, session.StateEliciting, sess.State)
}

func TestEmptySuccessCriteriaTriggersFollowUp(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)

	for _, content := range []string{
		"hello",
		"TaskAPI",
		"a task tracker",
		"go",
		"none",
		"balanced",
		"flat layout",
	} {
		say(t, engine, "frank", content)
	}

	// an answer that parses to zero criteria leaves the verification phase
	// empty, so the engine asks again instead of failing
	reply := say(t, engine, "frank", "-")
	assert.Contains(t, reply.Content, cannedQuestions[SlotSuccessCriteria])

	sess, err := store.Load(context.Background(), "frank")
	require.NoError(t, err)
	assert.Equal(t, session.StateEliciting, sess.State)
	assert.Equal(t, SlotSuccessCriteria, sess.PendingSlot)

	// a real answer gets the conversation to confirmation
	confirmAsk := say(t, engine, "frank", "the tracker lists tasks")
	assert.Contains(t, confirmAsk.Content, "finalize")
}

func TestRevisionAtConfirmationRebuildsDraft(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)

	for _, content := range []string{
		"hello",
		"TaskAPI",
		"a task tracker",
		"go",
		"none",
		"balanced",
		"flat layout",
		"tasks can be listed",
	} {
		say(t, engine, "gina", content)
	}

	reply := say(t, engine, "gina", "it also needs email reminders")
	assert.Contains(t, reply.Content, "finalize", "revision leads back to confirmation")

	sess, err := store.Load(context.Background(), "gina")
	require.NoError(t, err)
	assert.Equal(t, session.StateConfirming, sess.State)
	assert.Contains(t, sess.Slots[SlotDescription], "email reminders")
	assert.Contains(t, sess.Draft.Description, "email reminders")
}

func TestRefinerFailureShipsUnrefinedDraft(t *testing.T) {
	engine, store, sender := newTestEngine(t, func(cfg *Config) {
		cfg.Refiner = RefinerFunc(func(ctx context.Context, plan *buildplan.BuildPlan) (*buildplan.BuildPlan, error) {
			return nil, errors.New(errors.ErrCodeServiceExhausted, "all providers down")
		})
	})

	for _, content := range []string{
		"hello", "TaskAPI", "a task tracker", "go", "none", "balanced", "flat", "tasks can be listed",
	} {
		say(t, engine, "hank", content)
	}
	done := say(t, engine, "hank", "yes")
	assert.Contains(t, done.Content, "fingerprint")

	sess, err := store.Load(context.Background(), "hank")
	require.NoError(t, err)
	assert.Equal(t, session.StateDelivered, sess.State)
	assert.Len(t, sender.payloads, 1)
}

func TestContactAfterDeliveryStartsFresh(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)

	for _, content := range []string{
		"hello", "TaskAPI", "a task tracker", "go", "none", "balanced", "flat", "tasks can be listed", "yes",
	} {
		say(t, engine, "iris", content)
	}

	reply := say(t, engine, "iris", "hi again")
	assert.Contains(t, reply.Content, cannedQuestions[SlotProjectName])

	sess, err := store.Load(context.Background(), "iris")
	require.NoError(t, err)
	assert.Equal(t, session.StateEliciting, sess.State)
	assert.Empty(t, sess.Slots)
}

func TestConcurrentTurnsFromOneParticipantLoseNothing(t *testing.T) {
	// A slow provider call widens the window between load and save; every
	// turn must still land in the transcript in some total order.
	slow := completionFunc(func(ctx context.Context, req provider.Request) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "What should we build next?", nil
	})
	engine, store, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Completion = slow
	})

	say(t, engine, "kim", "hi")

	const writers = 4
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := engine.HandleTurn(context.Background(), "kim", session.Turn{
				Content: fmt.Sprintf("concurrent-answer-%d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := store.Load(context.Background(), "kim")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, turn := range sess.Transcript {
		if turn.Role == session.RoleParticipant {
			seen[turn.Content] = true
		}
	}
	for i := 0; i < writers; i++ {
		content := fmt.Sprintf("concurrent-answer-%d", i)
		require.True(t, seen[content], "participant turn %q was lost from the transcript", content)
	}
}

func TestAttachmentEnrichmentFillsReferencesOutOfBand(t *testing.T) {
	// the extractor waits until the turn that carried the attachment is
	// persisted, mirroring the slow-extraction case
	gate := make(chan struct{})
	extractor := &gatedExtractor{gate: gate, text: "requirements: offline-first, sync on reconnect"}
	dispatcher := extraction.NewDispatcher(extractor, time.Second, quietLogger())
	engine, store, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Dispatcher = dispatcher
	})

	say(t, engine, "jay", "hi")
	reply, err := engine.HandleTurn(context.Background(), "jay", session.Turn{
		Content:       "here are my notes",
		AttachmentRef: "doc://notes.pdf",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Content)

	close(gate)
	dispatcher.Wait()

	sess, err := store.Load(context.Background(), "jay")
	require.NoError(t, err)
	assert.Contains(t, sess.Slots[SlotReferences], "offline-first")

	last := sess.Transcript[len(sess.Transcript)-1]
	assert.Equal(t, session.RoleElicitor, last.Role)
	assert.Equal(t, "doc://notes.pdf", last.AttachmentRef)
	assert.Contains(t, last.Enrichment, "offline-first")
}

type completionFunc func(ctx context.Context, req provider.Request) (string, error)

func (f completionFunc) Complete(ctx context.Context, req provider.Request) (string, error) {
	return f(ctx, req)
}

func (f completionFunc) Name() string { return "scripted" }

type gatedExtractor struct {
	gate chan struct{}
	text string
}

func (g *gatedExtractor) Extract(ctx context.Context, ref string) (string, error) {
	select {
	case <-g.gate:
		return g.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
