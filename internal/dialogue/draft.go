package dialogue

import (
	"fmt"
	"strings"

	"github.com/planforge/planforge/internal/buildplan"
)

// buildDraft assembles a BuildPlan from the filled slots. Everything here is
// deterministic: the same slots produce the same plan shape, down to task
// ids, so a rebuilt draft after a revision stays comparable.
func buildDraft(slots map[string]string) (*buildplan.BuildPlan, error) {
	builder := buildplan.NewBuilder().
		SetProject(slots[SlotProjectName]).
		SetDescription(slots[SlotDescription])

	for key, value := range parseStack(slots[SlotStackPreference]) {
		builder.SetStackEntry(key, value)
	}
	builder.SetFileTree(parseFileTree(slots[SlotFileLayout]))

	corePriority := buildplan.PriorityP0
	verifyPriority := buildplan.PriorityP1
	if strings.Contains(strings.ToLower(slots[SlotRiskTolerance]), "conservative") {
		verifyPriority = buildplan.PriorityP0
	}

	if _, err := builder.AddTask(buildplan.PhaseFoundationalSetup, buildplan.TaskSpec{
		Title:              fmt.Sprintf("Scaffold the %s repository", slots[SlotProjectName]),
		Description:        "Project layout, dependency manifest, and a building skeleton.",
		Priority:           buildplan.PriorityP0,
		AcceptanceCriteria: []string{"Repository builds from a clean checkout"},
	}); err != nil {
		return nil, err
	}

	if _, err := builder.AddTask(buildplan.PhaseCoreLogic, buildplan.TaskSpec{
		Title:              "Implement the core behavior",
		Description:        slots[SlotDescription],
		Priority:           corePriority,
		AcceptanceCriteria: coreCriteria(slots),
	}); err != nil {
		return nil, err
	}

	if _, err := builder.AddTask(buildplan.PhaseInterface, buildplan.TaskSpec{
		Title:              "Expose the primary interface",
		Description:        "The surface users or callers interact with.",
		Priority:           buildplan.PriorityP1,
		AcceptanceCriteria: []string{"Interface is reachable end to end"},
	}); err != nil {
		return nil, err
	}

	for _, criterion := range splitLines(slots[SlotSuccessCriteria]) {
		if _, err := builder.AddTask(buildplan.PhaseVerification, buildplan.TaskSpec{
			Title:              "Verify: " + criterion,
			Priority:           verifyPriority,
			AcceptanceCriteria: []string{criterion},
		}); err != nil {
			return nil, err
		}
	}

	draft := builder.Draft()
	draft.StarterPrompt = starterPrompt(draft, slots)
	return draft, nil
}

// starterPrompt renders the instruction block handed to the code-generation
// agent alongside the compressed plan.
func starterPrompt(plan *buildplan.BuildPlan, slots map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are building %s: %s.\n", plan.Project, plan.Description)
	if len(plan.Stack) > 0 {
		b.WriteString("Stack: ")
		b.WriteString(stackSummary(plan.Stack))
		b.WriteString(".\n")
	}
	if refs := slots[SlotReferences]; refs != "" {
		b.WriteString("Reference material:\n")
		b.WriteString(refs)
		b.WriteString("\n")
	}
	b.WriteString("Work through the phases in order: foundational-setup, core-logic, interface, verification. ")
	b.WriteString("Complete every acceptance criterion before marking a task done.")
	return b.String()
}

func stackSummary(stack map[string]string) string {
	parts := make([]string, 0, len(stack))
	for k, v := range stack {
		parts = append(parts, k+"="+v)
	}
	// map order varies; the summary is prose, not a contract
	return strings.Join(parts, ", ")
}

func coreCriteria(slots map[string]string) []string {
	criteria := splitLines(slots[SlotSuccessCriteria])
	if len(criteria) == 0 {
		return nil
	}
	if len(criteria) > 3 {
		criteria = criteria[:3]
	}
	return criteria
}

// parseStack turns free-text stack preferences into key/value entries.
// "language: go, db: postgres" keeps the pairs; bare tokens become
// preference entries.
func parseStack(text string) map[string]string {
	out := map[string]string{}
	for _, part := range splitList(text) {
		if key, value, ok := strings.Cut(part, ":"); ok {
			out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
			continue
		}
		out[strings.ToLower(part)] = "preferred"
	}
	return out
}

func parseFileTree(text string) []buildplan.FileNode {
	var nodes []buildplan.FileNode
	for _, line := range splitLines(text) {
		nodes = append(nodes, buildplan.FileNode{
			Path: strings.TrimSuffix(line, "/"),
			Dir:  strings.HasSuffix(line, "/"),
		})
	}
	return nodes
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitList(text string) []string {
	var out []string
	for _, chunk := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
