package deliberation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/provider"
)

// Proposer produces a specialist's single proposal for an agenda item.
// A nil edit with a nil error is a no-objection.
type Proposer interface {
	Propose(ctx context.Context, role Role, plan *buildplan.BuildPlan, item AgendaItem) (*Edit, error)
}

// ProposerFunc adapts a function to the Proposer interface
type ProposerFunc func(ctx context.Context, role Role, plan *buildplan.BuildPlan, item AgendaItem) (*Edit, error)

func (f ProposerFunc) Propose(ctx context.Context, role Role, plan *buildplan.BuildPlan, item AgendaItem) (*Edit, error) {
	return f(ctx, role, plan, item)
}

// CompletionProposer asks the completion provider for a proposal and falls
// back to deterministic gap-fill heuristics when retries are exhausted, so
// deliberation keeps its termination bound through provider outages.
type CompletionProposer struct {
	completion provider.Completion
	retry      provider.RetryPolicy
}

// NewCompletionProposer creates a provider-backed proposer
func NewCompletionProposer(completion provider.Completion, retry provider.RetryPolicy) *CompletionProposer {
	if retry.MaxAttempts == 0 {
		retry = provider.DefaultRetryPolicy()
	}
	return &CompletionProposer{completion: completion, retry: retry}
}

// wire format the provider is asked to emit
type proposalPayload struct {
	Kind      string   `json:"kind"` // add | remove | reprioritize | none
	Category  string   `json:"category,omitempty"`
	Title     string   `json:"title,omitempty"`
	Criteria  []string `json:"criteria,omitempty"`
	TaskID    int      `json:"task_id,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

// Propose implements Proposer
func (p *CompletionProposer) Propose(ctx context.Context, role Role, plan *buildplan.BuildPlan, item AgendaItem) (*Edit, error) {
	if p.completion == nil {
		return fallbackProposal(plan, item), nil
	}

	var text string
	err := provider.Retry(ctx, p.retry, func(ctx context.Context) error {
		var completeErr error
		text, completeErr = p.completion.Complete(ctx, provider.Request{
			System: proposalSystem(role),
			Prompt: proposalPrompt(plan, item),
		})
		return completeErr
	})
	if err != nil {
		return fallbackProposal(plan, item), nil
	}

	edit, ok := parseProposal(text)
	if !ok {
		return fallbackProposal(plan, item), nil
	}
	return edit, nil
}

// fallbackProposal is the deterministic heuristic: an empty mandatory phase
// gets a filler task; everything else passes. Same inputs, same proposal.
func fallbackProposal(plan *buildplan.BuildPlan, item AgendaItem) *Edit {
	if item.TaskID != 0 || item.Contested {
		return nil
	}
	for _, phase := range plan.Phases {
		if phase.Category == item.Category && len(phase.Tasks) == 0 {
			return &Edit{
				Kind:     EditAdd,
				Category: item.Category,
				Spec: buildplan.TaskSpec{
					Title:              fmt.Sprintf("Cover the %s phase", item.Category),
					Description:        "Placeholder scoped from the project description; refine before execution.",
					Priority:           buildplan.PriorityP1,
					AcceptanceCriteria: []string{fmt.Sprintf("The %s phase has concrete, verified work", item.Category)},
				},
				Rationale: fmt.Sprintf("the %s phase has no tasks", item.Category),
			}
		}
	}
	return nil
}

func proposalSystem(role Role) string {
	return fmt.Sprintf(
		"You are the %s specialist in a build-plan review. Perspective: %s. "+
			"Reply with one JSON object: {\"kind\": \"add|remove|reprioritize|none\", ...}. "+
			"Propose at most one edit; reply {\"kind\": \"none\"} if the item is fine.",
		role.Name, role.Perspective)
}

func proposalPrompt(plan *buildplan.BuildPlan, item AgendaItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s — %s\n", plan.Project, plan.Description)
	if item.TaskID == 0 {
		fmt.Fprintf(&b, "Agenda: the %s phase has no tasks yet.\n", item.Category)
	} else if task, _, ok := plan.FindTask(item.TaskID); ok {
		fmt.Fprintf(&b, "Agenda: review task %d (%s, priority %s) in %s.\n",
			task.ID, task.Title, task.Priority, item.Category)
	}
	if item.Contested {
		b.WriteString("Your earlier proposal was overridden; this is your one contest.\n")
	}
	return b.String()
}

// parseProposal decodes the provider's reply. Anything that does not parse
// into a well-formed edit counts as unusable, never as an error.
func parseProposal(text string) (*Edit, bool) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var payload proposalPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, false
	}

	switch EditKind(payload.Kind) {
	case "none", "":
		return nil, true
	case EditAdd:
		category := buildplan.PhaseCategory(payload.Category)
		if !buildplan.ValidCategory(category) || payload.Title == "" || len(payload.Criteria) == 0 {
			return nil, false
		}
		priority, err := buildplan.NewPriority(orDefault(payload.Priority, string(buildplan.PriorityP1)))
		if err != nil {
			return nil, false
		}
		return &Edit{
			Kind:     EditAdd,
			Category: category,
			Spec: buildplan.TaskSpec{
				Title:              payload.Title,
				Priority:           priority,
				AcceptanceCriteria: payload.Criteria,
			},
			Rationale: payload.Rationale,
		}, true
	case EditRemove:
		if payload.TaskID == 0 {
			return nil, false
		}
		return &Edit{Kind: EditRemove, TaskID: payload.TaskID, Rationale: payload.Rationale}, true
	case EditReprioritize:
		if payload.TaskID == 0 {
			return nil, false
		}
		priority, err := buildplan.NewPriority(payload.Priority)
		if err != nil {
			return nil, false
		}
		return &Edit{Kind: EditReprioritize, TaskID: payload.TaskID, Priority: priority, Rationale: payload.Rationale}, true
	default:
		return nil, false
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
