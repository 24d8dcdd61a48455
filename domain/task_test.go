package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func ptrString(s string) *string { return &s }

var fixedNow = time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)

func TestNewTaskDefaults(t *testing.T) {
	task, err := NewTask("u1", TaskDraft{Title: "  write report "}, fixedNow)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Title != "write report" {
		t.Fatalf("expected trimmed title, got %q", task.Title)
	}
	if task.Category != CategoryWork || task.Status != StatusTodo || task.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults: %#v", task)
	}
	if task.DueDate != "2024-03-09" {
		t.Fatalf("expected due date to default to today, got %q", task.DueDate)
	}
	if task.UserID != "u1" || task.CreatedBy != "u1" {
		t.Fatalf("expected ownership stamped, got %#v", task)
	}
	if task.CreatedAt == "" || task.CreatedAt != task.UpdatedAt {
		t.Fatalf("expected createdAt == updatedAt, got %q %q", task.CreatedAt, task.UpdatedAt)
	}
	if len(task.Activities) != 1 || task.Activities[0].Action != "created" {
		t.Fatalf("expected created activity, got %#v", task.Activities)
	}
	if task.ID == "" {
		t.Fatal("expected id to be assigned")
	}
}

func TestNewTaskRejectsInvalidFields(t *testing.T) {
	cases := map[string]TaskDraft{
		"empty title":      {Title: "   "},
		"long description": {Title: "x", Description: strings.Repeat("d", MaxDescriptionLength+1)},
		"bad category":     {Title: "x", Category: "Hobby"},
		"bad status":       {Title: "x", Status: "Blocked"},
		"bad priority":     {Title: "x", Priority: "Urgent"},
		"bad due date":     {Title: "x", DueDate: "tomorrow"},
	}
	for name, draft := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewTask("u1", draft, fixedNow); !errors.Is(err, ErrInvalidTask) {
				t.Fatalf("expected ErrInvalidTask, got %v", err)
			}
		})
	}
}

func TestNewTaskIDsSortNewestFirst(t *testing.T) {
	older := NewTaskID(fixedNow)
	newer := NewTaskID(fixedNow.Add(time.Second))
	if !(newer < older) {
		t.Fatalf("expected newer id %q to sort before %q", newer, older)
	}
}

func TestApplyRecordsActivities(t *testing.T) {
	task, err := NewTask("u1", TaskDraft{Title: "t"}, fixedNow)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	done := StatusCompleted
	later := fixedNow.Add(time.Hour)
	changed, err := task.Apply(TaskUpdate{Title: ptrString("t2"), Status: &done}, "u1", later)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("expected two changed fields, got %v", changed)
	}
	if task.Title != "t2" || task.Status != StatusCompleted {
		t.Fatalf("update not applied: %#v", task)
	}
	if task.UpdatedAt == task.CreatedAt {
		t.Fatal("expected updatedAt to move forward")
	}
	if got := len(task.Activities); got != 3 {
		t.Fatalf("expected 3 activities, got %d", got)
	}
	if task.Activities[1].Action != "updated title" {
		t.Fatalf("unexpected activity %q", task.Activities[1].Action)
	}
	if task.Activities[2].Action != "status changed from Todo to Completed" {
		t.Fatalf("unexpected activity %q", task.Activities[2].Action)
	}
}

func TestApplyNoopLeavesTaskUntouched(t *testing.T) {
	task, _ := NewTask("u1", TaskDraft{Title: "t"}, fixedNow)
	before := task.UpdatedAt
	changed, err := task.Apply(TaskUpdate{Title: ptrString("t")}, "u1", fixedNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(changed) != 0 || task.UpdatedAt != before || len(task.Activities) != 1 {
		t.Fatalf("expected no-op, got changed=%v task=%#v", changed, task)
	}
}

func TestApplyEmptyUpdate(t *testing.T) {
	task, _ := NewTask("u1", TaskDraft{Title: "t"}, fixedNow)
	if _, err := task.Apply(TaskUpdate{}, "u1", fixedNow); !errors.Is(err, ErrEmptyUpdate) {
		t.Fatalf("expected ErrEmptyUpdate, got %v", err)
	}
}

func TestApplyInvalidLeavesTaskUntouched(t *testing.T) {
	task, _ := NewTask("u1", TaskDraft{Title: "t"}, fixedNow)
	bad := Category("Hobby")
	if _, err := task.Apply(TaskUpdate{Title: ptrString("new"), Category: &bad}, "u1", fixedNow); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if task.Title != "t" {
		t.Fatalf("expected title unchanged, got %q", task.Title)
	}
}

func TestActivitiesCapped(t *testing.T) {
	task, _ := NewTask("u1", TaskDraft{Title: "t"}, fixedNow)
	for i := 0; i < MaxActivities+5; i++ {
		title := "t" + strings.Repeat("x", i%2+1)
		if _, err := task.Apply(TaskUpdate{Title: &title}, "u1", fixedNow.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	if len(task.Activities) != MaxActivities {
		t.Fatalf("expected %d activities, got %d", MaxActivities, len(task.Activities))
	}
	if task.Activities[0].Action == "created" {
		t.Fatal("expected oldest activities to be dropped")
	}
}

func TestNormalizeDueDate(t *testing.T) {
	cases := map[string]string{
		"2024-05-01":           "2024-05-01",
		"01 May, 2024":         "2024-05-01",
		"May 01, 2024":         "2024-05-01",
		"May 1, 2024":          "2024-05-01",
		"2024-05-01T08:00:00Z": "2024-05-01",
	}
	for in, want := range cases {
		got, err := NormalizeDueDate(in)
		if err != nil {
			t.Fatalf("normalize %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("normalize %q: got %q want %q", in, got, want)
		}
	}
}
