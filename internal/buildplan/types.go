package buildplan

import (
	"fmt"
	"strings"
	"time"
)

// PhaseCategory identifies one of the fixed build phases.
// The order of the set is the order phases appear in a finalized plan.
type PhaseCategory string

const (
	PhaseFoundationalSetup PhaseCategory = "foundational-setup"
	PhaseCoreLogic         PhaseCategory = "core-logic"
	PhaseInterface         PhaseCategory = "interface"
	PhaseVerification      PhaseCategory = "verification"
)

// PhaseOrder is the canonical ordering of phase categories.
// Every category in this set is mandatory before finalization.
var PhaseOrder = []PhaseCategory{
	PhaseFoundationalSetup,
	PhaseCoreLogic,
	PhaseInterface,
	PhaseVerification,
}

// ValidCategory reports whether c is one of the fixed phase categories
func ValidCategory(c PhaseCategory) bool {
	for _, known := range PhaseOrder {
		if c == known {
			return true
		}
	}
	return false
}

// Priority represents a task priority level
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

// NewPriority creates a validated Priority value object
func NewPriority(value string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(value)))
	switch p {
	case PriorityP0, PriorityP1, PriorityP2:
		return p, nil
	default:
		return "", fmt.Errorf("priority %q must be one of P0, P1, P2", value)
	}
}

// Task represents a single unit of work in the plan
type Task struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	FilePath           string   `json:"file_path"`
	Priority           Priority `json:"priority"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Done               bool     `json:"done"`
}

// Phase groups the tasks belonging to one phase category
type Phase struct {
	Category PhaseCategory `json:"category"`
	Tasks    []Task        `json:"tasks"`
}

// FileNode is one entry in the planned file-structure tree
type FileNode struct {
	Path     string     `json:"path"`
	Dir      bool       `json:"dir,omitempty"`
	Children []FileNode `json:"children,omitempty"`
}

// BuildPlan is the structured specification document produced from a conversation.
// Once finalized it is treated as immutable; refinement always produces
// a new BuildPlan value via Clone.
type BuildPlan struct {
	ID            string            `json:"id"`
	Project       string            `json:"project"`
	Description   string            `json:"description"`
	StarterPrompt string            `json:"starter_prompt,omitempty"`
	Stack         map[string]string `json:"stack"`
	FileTree      []FileNode        `json:"file_tree,omitempty"`
	Phases        []Phase           `json:"phases"`
	Finalized     bool              `json:"finalized"`
	Fingerprint   string            `json:"fingerprint,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Tasks returns every task in the plan in phase order
func (p *BuildPlan) Tasks() []Task {
	var out []Task
	for _, phase := range p.Phases {
		out = append(out, phase.Tasks...)
	}
	return out
}

// FindTask returns the task with the given id and the category of the phase
// holding it, or false when no such task exists
func (p *BuildPlan) FindTask(id int) (Task, PhaseCategory, bool) {
	for _, phase := range p.Phases {
		for _, task := range phase.Tasks {
			if task.ID == id {
				return task, phase.Category, true
			}
		}
	}
	return Task{}, "", false
}

// Clone returns a deep copy of the plan
func (p *BuildPlan) Clone() *BuildPlan {
	out := *p

	if p.Stack != nil {
		out.Stack = make(map[string]string, len(p.Stack))
		for k, v := range p.Stack {
			out.Stack[k] = v
		}
	}

	out.FileTree = cloneFileNodes(p.FileTree)

	out.Phases = make([]Phase, len(p.Phases))
	for i, phase := range p.Phases {
		tasks := make([]Task, len(phase.Tasks))
		for j, task := range phase.Tasks {
			tasks[j] = task
			tasks[j].AcceptanceCriteria = append([]string(nil), task.AcceptanceCriteria...)
		}
		out.Phases[i] = Phase{Category: phase.Category, Tasks: tasks}
	}

	return &out
}

func cloneFileNodes(nodes []FileNode) []FileNode {
	if nodes == nil {
		return nil
	}
	out := make([]FileNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Children = cloneFileNodes(n.Children)
	}
	return out
}
