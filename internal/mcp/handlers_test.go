package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/josephgoksu/deepagent/internal/memory"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
)

func newServices(t *testing.T) (*planning.Service, *notes.Service) {
	t.Helper()
	store, err := memory.NewSQLiteStore(":memory:", memory.StoreOptions{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return planning.NewService(store), notes.NewService(store, nil)
}

func call(t *testing.T, svc *planning.Service, params PlanToolParams) *ToolResult {
	t.Helper()
	result, err := HandlePlanTool(context.Background(), svc, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestHandlePlanTool_InvalidAction(t *testing.T) {
	plans, _ := newServices(t)
	result := call(t, plans, PlanToolParams{Action: "explode", ThreadID: "t1"})
	if result.Error == "" {
		t.Error("expected error for invalid action")
	}
	if result.Action != "explode" {
		t.Errorf("expected action 'explode', got %q", result.Action)
	}
}

func TestHandlePlanTool_MissingThread(t *testing.T) {
	plans, _ := newServices(t)
	result := call(t, plans, PlanToolParams{Action: PlanActionView})
	if !strings.Contains(result.Error, "thread_id") {
		t.Errorf("expected thread_id error, got %q", result.Error)
	}
}

func TestHandlePlanTool_Lifecycle(t *testing.T) {
	plans, _ := newServices(t)

	result := call(t, plans, PlanToolParams{Action: PlanActionView, ThreadID: "t1"})
	if result.Content != "No active plan for this thread." {
		t.Errorf("unexpected view content: %q", result.Content)
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionCreate, ThreadID: "t1", Title: "Trip", Steps: []string{"flight", "hotel"}})
	if result.Error != "" {
		t.Fatalf("create failed: %s", result.Error)
	}
	if !strings.Contains(result.Content, "## Plan: Trip") || !strings.Contains(result.Content, "- [ ] 1. flight") {
		t.Errorf("unexpected create content: %q", result.Content)
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionCreate, ThreadID: "t1", Title: "Again", Steps: []string{"x"}})
	if result.Error == "" {
		t.Error("expected conflict for second active plan")
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionStep, ThreadID: "t1", StepNumber: 1})
	if !strings.Contains(result.Content, "- [x] 1. flight") {
		t.Errorf("step not completed: %q", result.Content)
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionAdd, ThreadID: "t1", Description: "pack"})
	if !strings.Contains(result.Content, "3. pack") {
		t.Errorf("step not added: %q", result.Content)
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionComplete, ThreadID: "t1"})
	if result.Error == "" {
		t.Error("expected error completing plan with pending steps")
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionCancel, ThreadID: "t1"})
	if !strings.Contains(result.Content, "cancelled") {
		t.Errorf("plan not cancelled: %q", result.Content)
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionStep, ThreadID: "t1", StepNumber: 2})
	if result.Error == "" {
		t.Error("expected error without an active plan")
	}

	result = call(t, plans, PlanToolParams{Action: PlanActionList, ThreadID: "t1"})
	if !strings.Contains(result.Content, "Trip (cancelled") {
		t.Errorf("unexpected list: %q", result.Content)
	}
}

func TestHandleNoteTool(t *testing.T) {
	_, svc := newServices(t)

	result, err := HandleNoteTool(context.Background(), svc, NoteToolParams{Action: NoteActionSave, Title: "Seat", Content: "aisle please", Tags: []string{"Travel"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result.Content, "Saved note `note-") {
		t.Errorf("unexpected save content: %q", result.Content)
	}

	result, err = HandleNoteTool(context.Background(), svc, NoteToolParams{Action: NoteActionSearch, Tag: "travel"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "- **Seat**: aisle please _(travel)_" {
		t.Errorf("unexpected search content: %q", result.Content)
	}

	result, _ = HandleNoteTool(context.Background(), svc, NoteToolParams{Action: NoteActionSave, Title: "empty"})
	if result.Error == "" {
		t.Error("expected validation error for empty content")
	}

	result, _ = HandleNoteTool(context.Background(), svc, NoteToolParams{Action: "forget"})
	if result.Error == "" {
		t.Error("expected error for invalid action")
	}
}

func TestFormatNotes_Truncates(t *testing.T) {
	long := strings.Repeat("a", 250)
	out := FormatNotes([]*notes.Note{{Title: "t", Content: long}})
	if !strings.HasSuffix(out, "...") {
		t.Errorf("expected truncated content, got %q", out)
	}
	if FormatNotes(nil) != "No notes found." {
		t.Error("expected empty message")
	}
}
