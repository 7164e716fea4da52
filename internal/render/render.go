// Package render formats plans, sessions, and deliberation transcripts for
// terminal output.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/planforge/planforge/internal/buildplan"
	"github.com/planforge/planforge/internal/deliberation"
	"github.com/planforge/planforge/internal/session"
)

// Styles holds the lipgloss styles used across renders
type Styles struct {
	Title    lipgloss.Style
	Phase    lipgloss.Style
	Muted    lipgloss.Style
	Priority map[buildplan.Priority]lipgloss.Style
	Done     lipgloss.Style
}

// DefaultStyles returns the standard terminal styling
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Phase: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Priority: map[buildplan.Priority]lipgloss.Style{
			buildplan.PriorityP0: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			buildplan.PriorityP1: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			buildplan.PriorityP2: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		},
		Done: lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("240")),
	}
}

// Plan renders a BuildPlan as a phase-by-phase task listing
func Plan(plan *buildplan.BuildPlan, styles Styles) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(plan.Project))
	if plan.Finalized {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  (finalized, fingerprint %s)", shorten(plan.Fingerprint, 12))))
	} else {
		b.WriteString(styles.Muted.Render("  (draft)"))
	}
	b.WriteString("\n")
	if plan.Description != "" {
		b.WriteString(plan.Description)
		b.WriteString("\n")
	}

	if len(plan.Stack) > 0 {
		b.WriteString(styles.Muted.Render("stack: " + stackLine(plan.Stack)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, phase := range plan.Phases {
		b.WriteString(styles.Phase.Render(string(phase.Category)))
		b.WriteString("\n")
		if len(phase.Tasks) == 0 {
			b.WriteString(styles.Muted.Render("  (no tasks)"))
			b.WriteString("\n")
			continue
		}
		for _, task := range phase.Tasks {
			line := fmt.Sprintf("  %3d. %s %s", task.ID, styles.Priority[task.Priority].Render(string(task.Priority)), task.Title)
			if task.Done {
				line = styles.Done.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
			for _, criterion := range task.AcceptanceCriteria {
				b.WriteString(styles.Muted.Render("       - " + criterion))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// SessionSummary renders one line per session for listings
func SessionSummary(sess *session.Session, styles Styles) string {
	draft := "no draft"
	if sess.Draft != nil {
		draft = fmt.Sprintf("draft %s", sess.Draft.Project)
	}
	return fmt.Sprintf("%s  %s  %s  %s",
		styles.Title.Render(sess.ParticipantID),
		sess.State,
		styles.Muted.Render(sess.LastActivityAt.Format("2006-01-02 15:04")),
		styles.Muted.Render(draft))
}

// Transcript renders a session transcript
func Transcript(sess *session.Session, styles Styles) string {
	var b strings.Builder
	for _, turn := range sess.Transcript {
		speaker := string(turn.Role)
		if turn.Role == session.RoleElicitor {
			speaker = styles.Phase.Render(speaker)
		} else {
			speaker = styles.Title.Render(speaker)
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n",
			styles.Muted.Render(turn.Timestamp.Format("15:04:05")), speaker, turn.Content))
		if turn.AttachmentRef != "" {
			b.WriteString(styles.Muted.Render("         attachment: " + turn.AttachmentRef))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Deliberation renders a negotiation transcript round by round
func Deliberation(outcome *deliberation.Outcome, styles Styles) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("deliberation: %s in %d round(s)", outcome.Status, outcome.Rounds)))
	b.WriteString("\n")

	round := 0
	for _, entry := range outcome.Transcript {
		if entry.Round != round {
			round = entry.Round
			b.WriteString(styles.Phase.Render(fmt.Sprintf("round %d", round)))
			b.WriteString("\n")
		}
		line := fmt.Sprintf("  %s %s", entry.Role, entry.Action)
		if entry.Detail != "" {
			line += ": " + entry.Detail
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func stackLine(stack map[string]string) string {
	keys := make([]string, 0, len(stack))
	for k := range stack {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+stack[k])
	}
	return strings.Join(parts, ", ")
}

func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
