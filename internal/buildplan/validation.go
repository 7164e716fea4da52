package buildplan

import (
	"fmt"
	"strings"

	"github.com/planforge/planforge/internal/errors"
)

// Validate checks if the Task is valid according to document rules
func (t *Task) Validate() error {
	if t.ID <= 0 {
		return errors.New(errors.ErrCodePlanDuplicateTaskID, fmt.Sprintf("task id must be positive, got %d", t.ID))
	}

	if strings.TrimSpace(t.Title) == "" {
		return errors.New(errors.ErrCodePlanUntitledTask, fmt.Sprintf("task %d has no title", t.ID))
	}

	if _, err := NewPriority(string(t.Priority)); err != nil {
		return errors.Wrap(errors.ErrCodePlanInvalidPriority, fmt.Sprintf("task %d", t.ID), err)
	}

	if len(t.AcceptanceCriteria) == 0 {
		return errors.NewEmptyCriteriaError(t.ID, t.Title)
	}

	for i, criterion := range t.AcceptanceCriteria {
		if strings.TrimSpace(criterion) == "" {
			return errors.New(errors.ErrCodePlanEmptyCriteria,
				fmt.Sprintf("task %d acceptance criterion at index %d is empty", t.ID, i))
		}
	}

	return nil
}

// Validate checks if the BuildPlan satisfies every finalization rule:
// a known category on every phase, at least one task per mandatory phase,
// unique strictly-increasing task ids, and valid tasks throughout.
func (p *BuildPlan) Validate() error {
	if strings.TrimSpace(p.Project) == "" {
		return errors.New(errors.ErrCodePlanMissingProject, "plan has no project name")
	}

	seen := map[PhaseCategory]bool{}
	taskIDs := map[int]bool{}

	for _, phase := range p.Phases {
		if !ValidCategory(phase.Category) {
			return errors.New(errors.ErrCodePlanUnknownPhase, "unknown phase category: "+string(phase.Category))
		}
		seen[phase.Category] = true

		for _, task := range phase.Tasks {
			if err := task.Validate(); err != nil {
				return err
			}

			// Uniqueness is checked here; strictly-increasing allocation is
			// the builder counter's contract.
			if taskIDs[task.ID] {
				return errors.NewDuplicateTaskIDError(task.ID)
			}
			taskIDs[task.ID] = true
		}
	}

	for _, category := range PhaseOrder {
		if !seen[category] {
			return errors.NewMissingMandatoryPhaseError(string(category))
		}
	}

	for _, phase := range p.Phases {
		if len(phase.Tasks) == 0 {
			return errors.NewEmptyTaskListError(string(phase.Category))
		}
	}

	return nil
}
