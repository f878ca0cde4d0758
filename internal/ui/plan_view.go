package ui

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/deepagent/internal/planning"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// StatusLabel title-cases a status for display.
func StatusLabel(status planning.PlanStatus) string {
	return titleCaser.String(string(status))
}

// RenderPlan draws one plan as a panel with a checklist of steps.
func RenderPlan(p *planning.PlanResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  %s  %s\n",
		StyleSubtle.Render(p.PlanID),
		statusStyle(string(p.Status)).Render(StatusLabel(p.Status)),
		StyleSubtle.Render(fmt.Sprintf("%.0f%% complete", p.CompletionPercentage)),
	))
	sb.WriteString(StyleSubtle.Render("thread "+p.ThreadID) + "\n\n")
	for _, s := range p.Steps {
		mark := StyleSubtle.Render("[ ]")
		if s.Completed {
			mark = StyleSuccess.Render("[x]")
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s\n", mark, s.StepNumber, s.Description))
	}
	return NewPanel(p.Title, strings.TrimRight(sb.String(), "\n")).Render()
}

// RenderPlanText is RenderPlan without styling, for pipes and logs.
func RenderPlanText(p *planning.PlanResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%s)\n", p.Title, p.PlanID))
	sb.WriteString(fmt.Sprintf("Thread: %s\n", p.ThreadID))
	sb.WriteString(fmt.Sprintf("Status: %s (%.0f%% complete)\n", StatusLabel(p.Status), p.CompletionPercentage))
	for _, s := range p.Steps {
		mark := "[ ]"
		if s.Completed {
			mark = "[x]"
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s\n", mark, s.StepNumber, s.Description))
	}
	return sb.String()
}

// PlanTable lists plans one per row.
func PlanTable(plans []*planning.PlanResponse) *Table {
	t := &Table{Headers: []string{"ID", "Title", "Status", "Steps", "Done"}, MaxWidth: 40}
	for _, p := range plans {
		done := 0
		for _, s := range p.Steps {
			if s.Completed {
				done++
			}
		}
		t.Rows = append(t.Rows, []string{
			p.PlanID,
			p.Title,
			StatusLabel(p.Status),
			fmt.Sprintf("%d/%d", done, len(p.Steps)),
			fmt.Sprintf("%.0f%%", p.CompletionPercentage),
		})
	}
	return t
}
