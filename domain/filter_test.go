package domain

import (
	"testing"
	"time"
)

func TestFilterSearchMatchesTitleOrDescription(t *testing.T) {
	tasks := []Task{
		{ID: "1", Title: "Buy Milk", Status: StatusTodo},
		{ID: "2", Title: "Report", Description: "quarterly MILK numbers", Status: StatusCompleted},
		{ID: "3", Title: "Gym", Status: StatusTodo},
	}
	got := TaskFilter{SearchQuery: "milk"}.Apply(tasks)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("unexpected search result: %#v", got)
	}
}

func TestFilterCombinesCriteria(t *testing.T) {
	tasks := []Task{
		{ID: "1", Title: "a", Status: StatusTodo, Category: CategoryWork, Priority: PriorityHigh},
		{ID: "2", Title: "a", Status: StatusTodo, Category: CategoryPersonal, Priority: PriorityHigh},
		{ID: "3", Title: "a", Status: StatusCompleted, Category: CategoryWork, Priority: PriorityHigh},
	}
	got := TaskFilter{Status: StatusTodo, Category: CategoryWork, Priority: PriorityHigh}.Apply(tasks)
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("unexpected filter result: %#v", got)
	}
}

func TestEmptyFilterMatchesAll(t *testing.T) {
	tasks := []Task{{ID: "1"}, {ID: "2"}}
	if got := (TaskFilter{}).Apply(tasks); len(got) != 2 {
		t.Fatalf("expected all tasks, got %d", len(got))
	}
}

func TestNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "a", CreatedAt: base.Format(time.RFC3339Nano)},
		{ID: "b", CreatedAt: base.Add(2 * time.Hour).Format(time.RFC3339Nano)},
		{ID: "c", CreatedAt: base.Add(time.Hour).Format(time.RFC3339Nano)},
	}
	NewestFirst(tasks)
	if tasks[0].ID != "b" || tasks[1].ID != "c" || tasks[2].ID != "a" {
		t.Fatalf("unexpected order: %s %s %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}
}
