package buildplan

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge/internal/errors"
)

// TaskSpec describes a task to add; the builder allocates its id
type TaskSpec struct {
	Title              string
	Description        string
	FilePath           string
	Priority           Priority
	AcceptanceCriteria []string
}

// Builder assembles a BuildPlan from filled slots and deliberation edits.
// Task ids come from a per-builder monotonic counter, so ids within a plan
// are unique and strictly increasing in creation order.
type Builder struct {
	plan     *BuildPlan
	nextTask int
}

// NewBuilder creates a builder for a fresh plan
func NewBuilder() *Builder {
	plan := &BuildPlan{
		ID:        uuid.New().String(),
		Stack:     map[string]string{},
		CreatedAt: time.Now().UTC(),
	}
	for _, category := range PhaseOrder {
		plan.Phases = append(plan.Phases, Phase{Category: category})
	}
	return &Builder{plan: plan, nextTask: 1}
}

// Resume creates a builder over an existing non-finalized plan, continuing
// the task id sequence past the highest id already present.
func Resume(plan *BuildPlan) (*Builder, error) {
	if plan.Finalized {
		return nil, errors.New(errors.ErrCodePlanAlreadyFinalized, "cannot resume a finalized plan")
	}

	next := 1
	for _, task := range plan.Tasks() {
		if task.ID >= next {
			next = task.ID + 1
		}
	}
	return &Builder{plan: plan.Clone(), nextTask: next}, nil
}

// SetProject sets the project name
func (b *Builder) SetProject(name string) *Builder {
	b.plan.Project = strings.TrimSpace(name)
	return b
}

// SetDescription sets the project description
func (b *Builder) SetDescription(desc string) *Builder {
	b.plan.Description = strings.TrimSpace(desc)
	return b
}

// SetStarterPrompt sets the prompt handed to the code-generation agent
func (b *Builder) SetStarterPrompt(prompt string) *Builder {
	b.plan.StarterPrompt = prompt
	return b
}

// SetStackEntry records one tech-stack key/value pair
func (b *Builder) SetStackEntry(key, value string) *Builder {
	b.plan.Stack[key] = value
	return b
}

// SetFileTree replaces the planned file-structure tree
func (b *Builder) SetFileTree(tree []FileNode) *Builder {
	b.plan.FileTree = tree
	return b
}

// AddTask appends a task to the phase with the given category and returns it
// with its allocated id
func (b *Builder) AddTask(category PhaseCategory, spec TaskSpec) (Task, error) {
	if !ValidCategory(category) {
		return Task{}, errors.New(errors.ErrCodePlanUnknownPhase, "unknown phase category: "+string(category))
	}

	priority := spec.Priority
	if priority == "" {
		priority = PriorityP1
	}
	if _, err := NewPriority(string(priority)); err != nil {
		return Task{}, errors.Wrap(errors.ErrCodePlanInvalidPriority, "invalid task priority", err)
	}

	task := Task{
		ID:                 b.nextTask,
		Title:              strings.TrimSpace(spec.Title),
		Description:        strings.TrimSpace(spec.Description),
		FilePath:           spec.FilePath,
		Priority:           priority,
		AcceptanceCriteria: append([]string(nil), spec.AcceptanceCriteria...),
	}
	b.nextTask++

	for i := range b.plan.Phases {
		if b.plan.Phases[i].Category == category {
			b.plan.Phases[i].Tasks = append(b.plan.Phases[i].Tasks, task)
			return task, nil
		}
	}

	// Phases for every category are created up front, so this is unreachable
	// unless the plan was constructed outside the builder.
	return Task{}, errors.New(errors.ErrCodePlanUnknownPhase, "phase not present in plan: "+string(category))
}

// RemoveTask deletes the task with the given id
func (b *Builder) RemoveTask(id int) error {
	for i := range b.plan.Phases {
		tasks := b.plan.Phases[i].Tasks
		for j, task := range tasks {
			if task.ID == id {
				b.plan.Phases[i].Tasks = append(tasks[:j], tasks[j+1:]...)
				return nil
			}
		}
	}
	return errors.New(errors.ErrCodePlanTaskNotFound, "task not found")
}

// SetTaskPriority reprioritizes the task with the given id
func (b *Builder) SetTaskPriority(id int, priority Priority) error {
	if _, err := NewPriority(string(priority)); err != nil {
		return errors.Wrap(errors.ErrCodePlanInvalidPriority, "invalid task priority", err)
	}

	for i := range b.plan.Phases {
		for j := range b.plan.Phases[i].Tasks {
			if b.plan.Phases[i].Tasks[j].ID == id {
				b.plan.Phases[i].Tasks[j].Priority = priority
				return nil
			}
		}
	}
	return errors.New(errors.ErrCodePlanTaskNotFound, "task not found")
}

// Draft returns a copy of the plan as it currently stands, without
// finalization checks. Used to persist partial drafts between turns.
func (b *Builder) Draft() *BuildPlan {
	return b.plan.Clone()
}

// Finalize validates the plan, stamps its fingerprint, and returns the
// frozen result. Validation failures are returned untouched so the dialogue
// engine can turn them into follow-up questions; nothing is repaired here.
func (b *Builder) Finalize() (*BuildPlan, error) {
	if err := b.plan.Validate(); err != nil {
		return nil, err
	}

	out := b.plan.Clone()
	out.Finalized = true

	fingerprint, err := Fingerprint(out)
	if err != nil {
		return nil, err
	}
	out.Fingerprint = fingerprint

	return out, nil
}
