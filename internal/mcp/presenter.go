package mcp

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
)

// FormatPlan converts a plan into concise Markdown.
func FormatPlan(plan *planning.PlanResponse) string {
	if plan == nil {
		return "No plan information."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Plan: %s\n", plan.Title))
	sb.WriteString(fmt.Sprintf("**ID**: `%s` | **Status**: %s | **Progress**: %.0f%%\n\n", plan.PlanID, plan.Status, plan.CompletionPercentage))

	if len(plan.Steps) > 0 {
		sb.WriteString("### Steps\n")
		done := 0
		for _, s := range plan.Steps {
			checkbox := "[ ]"
			if s.Completed {
				checkbox = "[x]"
				done++
			}
			sb.WriteString(fmt.Sprintf("- %s %d. %s\n", checkbox, s.StepNumber, s.Description))
		}
		sb.WriteString(fmt.Sprintf("\n**Progress**: %d/%d steps completed\n", done, len(plan.Steps)))
	}
	return strings.TrimSpace(sb.String())
}

// FormatPlanList renders one line per plan, newest first.
func FormatPlanList(plans []*planning.PlanResponse) string {
	if len(plans) == 0 {
		return "No plans found."
	}
	var sb strings.Builder
	sb.WriteString("## Plans\n")
	for _, p := range plans {
		sb.WriteString(fmt.Sprintf("- `%s` %s (%s, %.0f%%)\n", p.PlanID, p.Title, p.Status, p.CompletionPercentage))
	}
	return strings.TrimSpace(sb.String())
}

// FormatNotes renders notes as a Markdown list.
func FormatNotes(found []*notes.Note) string {
	if len(found) == 0 {
		return "No notes found."
	}
	var sb strings.Builder
	for _, n := range found {
		sb.WriteString(fmt.Sprintf("- **%s**: %s", n.Title, truncate(n.Content, 200)))
		if len(n.Tags) > 0 {
			sb.WriteString(fmt.Sprintf(" _(%s)_", strings.Join(n.Tags, ", ")))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// FormatError returns a Markdown error block.
func FormatError(message string) string {
	return fmt.Sprintf("## Error\n\n**Details**: %s", message)
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
