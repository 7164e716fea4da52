// Package dialogue runs the elicitation conversation: one question at a
// time, durable between turns, resilient to provider outages. The engine is
// a state machine over session.State; every transition is persisted before
// the reply goes out.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/codec"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/extraction"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/provider"
	"github.com/planforge/planforge/internal/session"
)

// Refiner runs the deliberation pass over a confirmed draft
type Refiner interface {
	Refine(ctx context.Context, plan *buildplan.BuildPlan) (*buildplan.BuildPlan, error)
}

// RefinerFunc adapts a function to the Refiner interface
type RefinerFunc func(ctx context.Context, plan *buildplan.BuildPlan) (*buildplan.BuildPlan, error)

func (f RefinerFunc) Refine(ctx context.Context, plan *buildplan.BuildPlan) (*buildplan.BuildPlan, error) {
	return f(ctx, plan)
}

// Sender delivers content to a participant outside the request/reply cycle,
// used for the final artifact drop.
type Sender interface {
	Send(ctx context.Context, participantID, content string) error
}

// Config wires the engine's collaborators
type Config struct {
	Store      session.Store
	Completion provider.Completion
	Retry      provider.RetryPolicy
	Dispatcher *extraction.Dispatcher
	Refiner    Refiner
	Codec      *codec.Codec
	Legend     string
	Sender     Sender
	SlotOrder  []string
	SessionTTL time.Duration
	Logger     *log.Logger
}

// Engine is the dialogue engine. One Engine serves every participant; all
// per-participant state lives in the session store. Turns and enrichment
// callbacks for the same participant are serialized through a keyed lock, so
// a load-modify-save cycle never races another and no turn is lost.
type Engine struct {
	store      session.Store
	completion provider.Completion
	retry      provider.RetryPolicy
	dispatcher *extraction.Dispatcher
	refiner    Refiner
	codec      *codec.Codec
	legend     string
	sender     Sender
	slotOrder  []string
	ttl        time.Duration
	logger     *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per participant key
}

// New creates a dialogue engine
func New(cfg Config) *Engine {
	if len(cfg.SlotOrder) == 0 {
		cfg.SlotOrder = DefaultSlotOrder()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = provider.DefaultRetryPolicy()
	}
	if cfg.Legend == "" {
		cfg.Legend = codec.LegendVersion1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.DefaultLogger()
	}
	return &Engine{
		store:      cfg.Store,
		completion: cfg.Completion,
		retry:      cfg.Retry,
		dispatcher: cfg.Dispatcher,
		refiner:    cfg.Refiner,
		codec:      cfg.Codec,
		legend:     cfg.Legend,
		sender:     cfg.Sender,
		slotOrder:  cfg.SlotOrder,
		ttl:        cfg.SessionTTL,
		logger:     cfg.Logger,
		locks:      map[string]*sync.Mutex{},
	}
}

// lockFor returns the mutex serializing session mutations for one participant
func (e *Engine) lockFor(participantID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[participantID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[participantID] = l
	}
	return l
}

// HandleTurn processes one inbound participant turn and returns the engine's
// single reply. The session, including the reply, is persisted before the
// reply is returned. Rapid near-simultaneous turns from the same participant
// queue behind the participant lock and land in arrival order; turns for
// other participants proceed independently.
func (e *Engine) HandleTurn(ctx context.Context, participantID string, inbound session.Turn) (session.Turn, error) {
	lock := e.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	sess, fresh, err := e.loadOrCreate(ctx, participantID)
	if err != nil {
		return session.Turn{}, err
	}

	inbound.Role = session.RoleParticipant
	if inbound.Timestamp.IsZero() {
		inbound.Timestamp = time.Now().UTC()
	}
	sess.Append(inbound)

	if inbound.AttachmentRef != "" && e.dispatcher != nil {
		e.dispatcher.Dispatch(participantID, inbound.AttachmentRef, e.applyEnrichment)
	}

	var reply session.Turn
	switch {
	case !fresh && stopIntent(inbound.Content):
		reply = e.pause(sess)
	case sess.State == session.StateIdle:
		// The message that wakes an idle session is a greeting, not an
		// answer; re-ask the outstanding question instead of consuming it.
		e.resume(sess)
		reply = e.reask(ctx, sess)
	default:
		reply, err = e.advance(ctx, sess, inbound)
		if err != nil {
			return session.Turn{}, err
		}
	}

	sess.Append(reply)
	if err := e.store.Save(ctx, sess); err != nil {
		return session.Turn{}, err
	}
	return reply, nil
}

func (e *Engine) loadOrCreate(ctx context.Context, participantID string) (*session.Session, bool, error) {
	sess, err := e.store.Load(ctx, participantID)
	switch {
	case errors.CodeOf(err) == errors.ErrCodeStoreNotFound:
		return session.New(participantID, e.ttl), true, nil
	case err != nil:
		return nil, false, err
	}

	// A delivered or expired session is done; the next contact starts over.
	if sess.State.Terminal() || sess.Expired(time.Now().UTC()) {
		return session.New(participantID, e.ttl), true, nil
	}
	return sess, false, nil
}

// pause parks the session without losing anything. The draft, the slots, and
// the transcript all survive; resume picks up at the same state.
func (e *Engine) pause(sess *session.Session) session.Turn {
	if sess.State != session.StateIdle {
		sess.ResumeState = sess.State
		sess.State = session.StateIdle
	}
	return elicitorTurn("No problem, we can pick this up whenever you like. Everything so far is saved.")
}

func (e *Engine) resume(sess *session.Session) {
	if sess.ResumeState != "" {
		sess.State = sess.ResumeState
	} else {
		sess.State = session.StateEliciting
	}
	sess.ResumeState = ""
}

// reask restates where the conversation stood when it went idle
func (e *Engine) reask(ctx context.Context, sess *session.Session) session.Turn {
	switch sess.State {
	case session.StateConfirming:
		if sess.Draft != nil {
			return elicitorTurn("Welcome back. " + draftSummary(sess.Draft) +
				"\n\nShall I finalize this plan? (yes to confirm, or tell me what to change)")
		}
	case session.StateEliciting:
		if sess.PendingSlot == "" {
			sess.PendingSlot = e.nextSlot(sess)
		}
		if sess.PendingSlot != "" {
			return elicitorTurn("Welcome back. " + e.phraseQuestion(ctx, sess, sess.PendingSlot))
		}
	}
	sess.State = session.StateEliciting
	return e.elicit(ctx, sess, session.Turn{})
}

func (e *Engine) advance(ctx context.Context, sess *session.Session, inbound session.Turn) (session.Turn, error) {
	switch sess.State {
	case session.StateGreeting:
		return e.greet(ctx, sess), nil
	case session.StateEliciting:
		return e.elicit(ctx, sess, inbound), nil
	case session.StateConfirming:
		return e.confirm(ctx, sess, inbound)
	default:
		return session.Turn{}, errors.New(errors.ErrCodeDialogueBadState,
			fmt.Sprintf("no inbound turns expected in state %s", sess.State))
	}
}

func (e *Engine) greet(ctx context.Context, sess *session.Session) session.Turn {
	sess.State = session.StateEliciting
	slot := e.nextSlot(sess)
	sess.PendingSlot = slot
	question := e.phraseQuestion(ctx, sess, slot)
	return elicitorTurn("Let's turn your idea into a build plan. " + question)
}

func (e *Engine) elicit(ctx context.Context, sess *session.Session, inbound session.Turn) session.Turn {
	if sess.PendingSlot != "" && strings.TrimSpace(inbound.Content) != "" {
		e.fillSlot(sess, sess.PendingSlot, inbound.Content)
	}
	sess.PendingSlot = ""

	slot := e.nextSlot(sess)
	if slot == "" {
		return e.proposeDraft(ctx, sess)
	}

	sess.PendingSlot = slot
	return elicitorTurn(e.phraseQuestion(ctx, sess, slot))
}

// fillSlot records an answer. The references slot accumulates instead of
// overwriting, because extraction results land there too.
func (e *Engine) fillSlot(sess *session.Session, slot, value string) {
	value = strings.TrimSpace(value)
	if slot == SlotReferences && sess.Slots[slot] != "" {
		sess.Slots[slot] = sess.Slots[slot] + "\n" + value
		return
	}
	sess.Slots[slot] = value
}

// nextSlot returns the highest-priority unfilled slot, or "" when the
// checklist is complete.
func (e *Engine) nextSlot(sess *session.Session) string {
	for _, slot := range e.slotOrder {
		if strings.TrimSpace(sess.Slots[slot]) == "" {
			return slot
		}
	}
	return ""
}

// proposeDraft builds the draft plan from the slots and asks for
// confirmation. Validation failures route back into elicitation as a
// targeted follow-up question rather than surfacing as errors.
func (e *Engine) proposeDraft(ctx context.Context, sess *session.Session) session.Turn {
	draft, err := buildDraft(sess.Slots)
	if err == nil {
		err = draft.Validate()
	}
	if err != nil {
		slot := followUpSlot(err)
		e.logger.WithError(err).InfoContext(ctx, "draft incomplete, asking follow-up",
			"participant_id", sess.ParticipantID, "slot", slot)
		delete(sess.Slots, slot)
		sess.State = session.StateEliciting
		sess.PendingSlot = slot
		return elicitorTurn("Almost there, but I need a bit more. " + e.phraseQuestion(ctx, sess, slot))
	}

	sess.Draft = draft
	sess.State = session.StateConfirming
	sess.PendingSlot = ""
	return elicitorTurn(draftSummary(draft) + "\n\nShall I finalize this plan? (yes to confirm, or tell me what to change)")
}

func (e *Engine) confirm(ctx context.Context, sess *session.Session, inbound session.Turn) (session.Turn, error) {
	if !affirmative(inbound.Content) {
		// Treat anything else as a revision note and rebuild the draft.
		e.fillSlot(sess, SlotDescription, sess.Slots[SlotDescription]+"\n"+strings.TrimSpace(inbound.Content))
		return e.proposeDraft(ctx, sess), nil
	}
	return e.deliver(ctx, sess)
}

// deliver runs deliberation, finalizes, compresses, and sends the artifact.
// Provider trouble inside deliberation degrades, it never aborts: the
// refiner falls back to deterministic proposals, and a refiner error ships
// the unrefined draft.
func (e *Engine) deliver(ctx context.Context, sess *session.Session) (session.Turn, error) {
	plan := sess.Draft
	if plan == nil {
		return session.Turn{}, errors.New(errors.ErrCodeDialogueNoDraft, "confirming without a draft")
	}

	sess.State = session.StateDeliberating
	if e.refiner != nil {
		refined, err := e.refiner.Refine(ctx, plan)
		if err != nil {
			e.logger.WithError(err).WarnContext(ctx, "deliberation failed, shipping unrefined draft",
				"participant_id", sess.ParticipantID)
		} else {
			refined.StarterPrompt = plan.StarterPrompt
			plan = refined
		}
	}

	sess.State = session.StateFinalizing
	builder, err := buildplan.Resume(plan)
	if err != nil {
		return session.Turn{}, err
	}
	final, err := builder.Finalize()
	if err != nil {
		// Deliberation edits regressed the plan below the validation bar.
		slot := followUpSlot(err)
		delete(sess.Slots, slot)
		sess.State = session.StateEliciting
		sess.PendingSlot = slot
		return elicitorTurn("One gap left before I can finalize. " + e.phraseQuestion(ctx, sess, slot)), nil
	}

	artifact, err := e.codec.Compress(final, e.legend)
	if err != nil {
		return session.Turn{}, err
	}
	data, err := artifact.Marshal()
	if err != nil {
		return session.Turn{}, err
	}

	if e.sender != nil {
		if err := e.sender.Send(ctx, sess.ParticipantID, string(data)); err != nil {
			return session.Turn{}, errors.Wrap(errors.ErrCodeServiceUnavailable, "artifact delivery failed", err)
		}
	}

	sess.Draft = final
	sess.State = session.StateDelivered
	return elicitorTurn(fmt.Sprintf(
		"Done. Your build plan for %s is finalized and delivered (fingerprint %s).\n\nStarter prompt:\n%s",
		final.Project, shortFingerprint(final.Fingerprint), final.StarterPrompt)), nil
}

// phraseQuestion asks the completion provider to phrase the next question,
// falling back to the canned phrasing when retries are exhausted. Exactly
// one question comes back either way.
func (e *Engine) phraseQuestion(ctx context.Context, sess *session.Session, slot string) string {
	canned := cannedQuestions[slot]
	if e.completion == nil {
		return canned
	}

	var text string
	err := provider.Retry(ctx, e.retry, func(ctx context.Context) error {
		var completeErr error
		text, completeErr = e.completion.Complete(ctx, provider.Request{
			System: "You are gathering requirements for a software build plan. Ask exactly one short question and nothing else.",
			Prompt: fmt.Sprintf("Known so far: %s. Ask the participant about: %s", slotDigest(sess.Slots), canned),
		})
		return completeErr
	})
	if err != nil {
		e.logger.WithError(err).WarnContext(ctx, "question phrasing degraded to canned text",
			"participant_id", sess.ParticipantID, "slot", slot)
		return canned
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.Count(text, "?") != 1 {
		return canned
	}
	return text
}

// applyEnrichment folds a finished extraction into the session. It takes the
// same participant lock as HandleTurn and loads a fresh snapshot: the
// conversation has moved on since dispatch, and writing a stale one back
// would drop turns.
func (e *Engine) applyEnrichment(ctx context.Context, participantID, attachmentRef, enrichment string, extractErr error) {
	lock := e.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	turn := session.Turn{
		Role:          session.RoleElicitor,
		Timestamp:     time.Now().UTC(),
		AttachmentRef: attachmentRef,
	}
	if extractErr != nil {
		turn.Content = "I couldn't read that attachment, so I'll plan without it."
	} else {
		turn.Content = "I've read the attachment and folded it into the plan context."
		turn.Enrichment = enrichment
	}

	sess, err := e.store.Load(ctx, participantID)
	if err != nil {
		e.logger.WithError(err).WarnContext(ctx, "enrichment arrived for unloadable session",
			"participant_id", participantID)
		return
	}

	sess.Append(turn)
	if extractErr == nil {
		e.fillSlot(sess, SlotReferences, enrichment)
	}
	if err := e.store.Save(ctx, sess); err != nil {
		e.logger.WithError(err).WarnContext(ctx, "failed to persist enrichment",
			"participant_id", participantID)
	}
}

// followUpSlot maps a validation failure to the slot whose answer can fix it
func followUpSlot(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "verification") || strings.Contains(msg, "criteria"):
		return SlotSuccessCriteria
	case strings.Contains(msg, "project"):
		return SlotProjectName
	default:
		return SlotDescription
	}
}

func draftSummary(plan *buildplan.BuildPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's the plan for %s: %s\n", plan.Project, plan.Description)
	for _, phase := range plan.Phases {
		fmt.Fprintf(&b, "- %s: %d task(s)\n", phase.Category, len(phase.Tasks))
	}
	return strings.TrimRight(b.String(), "\n")
}

func slotDigest(slots map[string]string) string {
	var parts []string
	for _, slot := range DefaultSlotOrder() {
		if v := slots[slot]; v != "" {
			if len(v) > 80 {
				v = v[:80]
			}
			parts = append(parts, slot+"="+v)
		}
	}
	if len(parts) == 0 {
		return "nothing yet"
	}
	return strings.Join(parts, "; ")
}

func elicitorTurn(content string) session.Turn {
	return session.Turn{
		Role:      session.RoleElicitor,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

var stopPhrases = []string{
	"stop", "pause", "hold on", "not now", "later", "brb",
	"let's pause", "pause this", "stop for now", "i have to go", "gotta go",
}

// stopIntent detects an explicit wish to pause. Matching is deliberately
// narrow: a sentence that merely contains "stop" keeps the conversation
// going.
func stopIntent(content string) bool {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(content), ".!")))
	for _, phrase := range stopPhrases {
		if normalized == phrase {
			return true
		}
	}
	return false
}

var yesPhrases = []string{
	"yes", "y", "yep", "yeah", "confirm", "confirmed", "looks good", "lgtm",
	"go ahead", "ship it", "finalize", "ok", "okay", "sounds good",
}

func affirmative(content string) bool {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(content), ".!")))
	for _, phrase := range yesPhrases {
		if normalized == phrase {
			return true
		}
	}
	return false
}
