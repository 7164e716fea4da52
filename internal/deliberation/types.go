// Package deliberation refines a draft BuildPlan through a bounded-round,
// multi-role negotiation. The protocol is deterministic: agenda items come
// from a fixed gap scan, ties break on fixed role priority, a specialist
// contests at most once per item, and a hard round cap bounds the whole run.
package deliberation

import (
	"strconv"

	"github.com/planforge/planforge/internal/buildplan"
)

// Role is one negotiating party. The coordinator chairs; specialists
// propose. Higher Priority wins tie-breaks between conflicting edits.
type Role struct {
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	Perspective string `json:"perspective"`
}

// EditKind enumerates the mutations a specialist may propose
type EditKind string

const (
	EditAdd          EditKind = "add"
	EditRemove       EditKind = "remove"
	EditReprioritize EditKind = "reprioritize"
)

// Edit is one proposed plan mutation. Add fills Category and Spec; remove
// and reprioritize address a task by id.
type Edit struct {
	Kind      EditKind                `json:"kind"`
	Category  buildplan.PhaseCategory `json:"category,omitempty"`
	Spec      buildplan.TaskSpec      `json:"spec,omitempty"`
	TaskID    int                     `json:"task_id,omitempty"`
	Priority  buildplan.Priority      `json:"priority,omitempty"`
	Rationale string                  `json:"rationale,omitempty"`
}

// AgendaItem is what one round negotiates: either a phase with no tasks yet
// (TaskID zero) or a specific task under review.
type AgendaItem struct {
	Category  buildplan.PhaseCategory
	TaskID    int
	Contested bool
}

func (a AgendaItem) key() string {
	if a.TaskID != 0 {
		return string(a.Category) + "/" + strconv.Itoa(a.TaskID)
	}
	return string(a.Category)
}

// Status of a finished deliberation
type Status string

const (
	// StatusRefined means the run converged: a full pass produced no edits
	StatusRefined Status = "refined"

	// StatusRefinedWithOpenItems means the round cap halted negotiation
	// while edits were still flowing; the participant decides what's next.
	StatusRefinedWithOpenItems Status = "refined-with-open-items"
)

// Action tags a transcript entry
type Action string

const (
	ActionPropose     Action = "propose"
	ActionNoObjection Action = "no-objection"
	ActionApply       Action = "apply"
	ActionReject      Action = "reject"
	ActionContest     Action = "contest"
	ActionRuling      Action = "ruling"
	ActionHalt        Action = "halt"
)

// Entry is one transcript line; the transcript makes every run explainable
// after the fact.
type Entry struct {
	Round  int    `json:"round"`
	Role   string `json:"role"`
	Action Action `json:"action"`
	Detail string `json:"detail,omitempty"`
	Edit   *Edit  `json:"edit,omitempty"`
}

// Outcome is the result of a deliberation run
type Outcome struct {
	Plan       *buildplan.BuildPlan `json:"plan"`
	Status     Status               `json:"status"`
	Rounds     int                  `json:"rounds"`
	Transcript []Entry              `json:"transcript"`
}
