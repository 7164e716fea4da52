package deliberation

import (
	"context"
	"fmt"
	"sort"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/log"
)

// DefaultRoundCap bounds a deliberation run when config does not override it
const DefaultRoundCap = 8

// Config wires a deliberation engine
type Config struct {
	Coordinator Role
	Specialists []Role
	Proposer    Proposer
	RoundCap    int
	Logger      *log.Logger
}

// Engine runs the bounded-round negotiation. Engines are stateless between
// runs; deliberations for different sessions can run on the same Engine in
// parallel, while rounds within one run are strictly sequential.
type Engine struct {
	coordinator Role
	specialists []Role
	proposer    Proposer
	roundCap    int
	logger      *log.Logger
}

// New creates a deliberation engine
func New(cfg Config) (*Engine, error) {
	if cfg.Coordinator.Name == "" {
		return nil, errors.New(errors.ErrCodeDelibNoCoordinator, "deliberation needs a coordinator role")
	}
	if len(cfg.Specialists) == 0 {
		return nil, errors.New(errors.ErrCodeDelibNoSpecialists, "deliberation needs at least one specialist role")
	}
	if cfg.RoundCap <= 0 {
		cfg.RoundCap = DefaultRoundCap
	}
	if cfg.Logger == nil {
		cfg.Logger = log.DefaultLogger()
	}
	return &Engine{
		coordinator: cfg.Coordinator,
		specialists: sortedByPriority(cfg.Specialists),
		proposer:    cfg.Proposer,
		roundCap:    cfg.RoundCap,
		logger:      cfg.Logger,
	}, nil
}

type proposal struct {
	role Role
	edit *Edit
}

// pendingContest carries an overridden specialist's one chance to contest
// into a following round. Every overridden specialist gets its own entry;
// contests drain one per round in priority order.
type pendingContest struct {
	role Role
	item AgendaItem
}

// Run negotiates over a clone of the plan and returns the refined result.
// The input plan is never mutated. A zero-edit pass halts with StatusRefined;
// hitting the round cap halts with StatusRefinedWithOpenItems.
func (e *Engine) Run(ctx context.Context, plan *buildplan.BuildPlan) (*Outcome, error) {
	builder, err := buildplan.Resume(plan)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Status: StatusRefinedWithOpenItems}
	settled := map[string]bool{}
	var contests []pendingContest

	for round := 1; round <= e.roundCap; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome.Rounds = round

		if len(contests) > 0 {
			next := contests[0]
			contests = contests[1:]
			e.runContest(ctx, round, builder, &next, outcome)
			continue
		}

		item, ok := e.nextAgenda(builder.Draft(), settled)
		if !ok {
			outcome.record(round, e.coordinator.Name, ActionHalt, "agenda exhausted", nil)
			outcome.Status = StatusRefined
			break
		}

		proposals := e.gather(ctx, round, item, builder.Draft(), outcome)
		if len(proposals) == 0 {
			settled[item.key()] = true
			// A pass with nothing to say ends the run.
			outcome.record(round, e.coordinator.Name, ActionHalt,
				fmt.Sprintf("no edits proposed for %s", item.key()), nil)
			outcome.Status = StatusRefined
			break
		}

		// Tie-break: the highest-priority specialist's edit is applied,
		// every other proposal on this item is overridden.
		winner := proposals[0]
		if err := applyEdit(builder, winner.edit); err != nil {
			outcome.record(round, e.coordinator.Name, ActionReject,
				fmt.Sprintf("edit from %s does not apply: %v", winner.role.Name, err), winner.edit)
		} else {
			outcome.record(round, e.coordinator.Name, ActionApply,
				fmt.Sprintf("applied %s edit from %s", winner.edit.Kind, winner.role.Name), winner.edit)
		}
		settled[item.key()] = true

		// Every overridden specialist may contest once; proposals arrive in
		// priority order, so contests drain highest priority first.
		for _, overridden := range proposals[1:] {
			contests = append(contests, pendingContest{role: overridden.role, item: item})
		}
	}

	outcome.Plan = builder.Draft()
	return outcome, nil
}

// runContest gives the overridden specialist its single contest. The ruling
// is deterministic: the applied edit came from a higher-priority role, so
// the coordinator upholds it; the value of the contest is the recorded
// rationale, not a chance to flip the outcome.
func (e *Engine) runContest(ctx context.Context, round int, builder *buildplan.Builder, contest *pendingContest, outcome *Outcome) {
	item := contest.item
	item.Contested = true

	edit, err := e.proposer.Propose(ctx, contest.role, builder.Draft(), item)
	if err != nil || edit == nil {
		outcome.record(round, contest.role.Name, ActionNoObjection, "declined to contest", nil)
		return
	}

	outcome.record(round, contest.role.Name, ActionContest, edit.Rationale, edit)
	outcome.record(round, e.coordinator.Name, ActionRuling,
		fmt.Sprintf("ruling stands for %s; no further contest permitted", item.key()), nil)
}

// gather collects at most one proposal per specialist, ordered by priority.
// Proposer failures degrade to no-objection so a provider outage can only
// shorten a deliberation, never wedge it.
func (e *Engine) gather(ctx context.Context, round int, item AgendaItem, plan *buildplan.BuildPlan, outcome *Outcome) []proposal {
	var proposals []proposal
	for _, role := range e.specialists {
		edit, err := e.proposer.Propose(ctx, role, plan, item)
		if err != nil {
			e.logger.WithError(err).WarnContext(ctx, "specialist proposal failed",
				"role", role.Name, "item", item.key())
			outcome.record(round, role.Name, ActionNoObjection, "proposal unavailable", nil)
			continue
		}
		if edit == nil {
			outcome.record(round, role.Name, ActionNoObjection, "", nil)
			continue
		}
		outcome.record(round, role.Name, ActionPropose, edit.Rationale, edit)
		proposals = append(proposals, proposal{role: role, edit: edit})
	}
	return proposals
}

// nextAgenda scans for the first unsettled item: empty phases in category
// order first, then every task in phase and task order.
func (e *Engine) nextAgenda(plan *buildplan.BuildPlan, settled map[string]bool) (AgendaItem, bool) {
	for _, phase := range plan.Phases {
		if len(phase.Tasks) == 0 {
			item := AgendaItem{Category: phase.Category}
			if !settled[item.key()] {
				return item, true
			}
		}
	}
	for _, phase := range plan.Phases {
		for _, task := range phase.Tasks {
			item := AgendaItem{Category: phase.Category, TaskID: task.ID}
			if !settled[item.key()] {
				return item, true
			}
		}
	}
	return AgendaItem{}, false
}

func applyEdit(builder *buildplan.Builder, edit *Edit) error {
	switch edit.Kind {
	case EditAdd:
		_, err := builder.AddTask(edit.Category, edit.Spec)
		return err
	case EditRemove:
		return builder.RemoveTask(edit.TaskID)
	case EditReprioritize:
		return builder.SetTaskPriority(edit.TaskID, edit.Priority)
	default:
		return errors.New(errors.ErrCodeDelibBadEdit, "unknown edit kind: "+string(edit.Kind))
	}
}

func (o *Outcome) record(round int, role string, action Action, detail string, edit *Edit) {
	o.Transcript = append(o.Transcript, Entry{
		Round:  round,
		Role:   role,
		Action: action,
		Detail: detail,
		Edit:   edit,
	})
}

// sortedByPriority orders specialists highest priority first; the stable
// sort keeps configuration order as the tie-break between equal priorities.
func sortedByPriority(roles []Role) []Role {
	out := append([]Role(nil), roles...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Refine adapts Run to the dialogue engine's refiner hook: it returns the
// refined plan and folds the outcome status into the log rather than the
// conversation.
func (e *Engine) Refine(ctx context.Context, plan *buildplan.BuildPlan) (*buildplan.BuildPlan, error) {
	outcome, err := e.Run(ctx, plan)
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "deliberation finished",
		"status", string(outcome.Status), "rounds", outcome.Rounds, "plan_id", outcome.Plan.ID)
	return outcome.Plan, nil
}
