package scenarios

import (
	"errors"
	"net/http"
	"testing"

	"taskboard/tests/integration/internal/httpclient"
)

func TestCreateEditMoveDeleteTask(t *testing.T) {
	client := newClient(t)

	title := uniqueTitle("add-form")
	created := createTask(t, client, map[string]any{
		"title":    title,
		"category": "Personal",
		"priority": "High",
		"dueDate":  "2030-01-15",
	})
	if created.Status != "Todo" {
		t.Fatalf("expected new task in Todo, got %q", created.Status)
	}

	newTitle := title + " edited"
	var updated task
	if _, err := client.PatchJSON("/api/tasks/"+created.ID, map[string]any{"title": newTitle, "description": "from the edit modal"}, &updated); err != nil {
		t.Fatalf("edit task: %v", err)
	}
	if updated.Title != newTitle || updated.Description != "from the edit modal" {
		t.Fatalf("unexpected edit result: %+v", updated)
	}

	var moved struct {
		Moved bool `json:"moved"`
		Task  task `json:"task"`
	}
	drop := map[string]any{
		"draggableId": created.ID,
		"source":      map[string]any{"droppableId": "Todo", "index": 0},
		"destination": map[string]any{"droppableId": "Completed", "index": 0},
	}
	if _, err := client.PostJSON("/api/tasks/"+created.ID+"/move", drop, &moved); err != nil {
		t.Fatalf("move task: %v", err)
	}
	if !moved.Moved || moved.Task.Status != "Completed" {
		t.Fatalf("expected task moved to Completed, got %+v", moved)
	}

	pollTasks(t, client, "moved task in list", func(ts []task) bool {
		tk, ok := findTask(ts, created.ID)
		return ok && tk.Status == "Completed" && tk.Title == newTitle
	})

	if _, err := client.Delete("/api/tasks/" + created.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	_, err := client.GetJSON("/api/tasks/"+created.ID, nil)
	var se *httpclient.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestDropOutsideColumnIsNoop(t *testing.T) {
	client := newClient(t)
	created := createTask(t, client, map[string]any{"title": uniqueTitle("drop-null")})

	var moved struct {
		Moved bool `json:"moved"`
	}
	drop := map[string]any{
		"draggableId": created.ID,
		"source":      map[string]any{"droppableId": "Todo", "index": 0},
		"destination": nil,
	}
	if _, err := client.PostJSON("/api/tasks/"+created.ID+"/move", drop, &moved); err != nil {
		t.Fatalf("move task: %v", err)
	}
	if moved.Moved {
		t.Fatalf("expected no-op move")
	}
}
