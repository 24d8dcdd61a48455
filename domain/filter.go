package domain

import (
	"sort"
	"strings"
)

// LiveQueryLimit caps the number of tasks a live query delivers.
const LiveQueryLimit = 100

// TaskFilter narrows a task list. Zero fields match everything.
type TaskFilter struct {
	Category    Category `json:"category,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	SearchQuery string   `json:"searchQuery,omitempty"`
}

// Matches reports whether t passes every set criterion. The search query is a
// case-insensitive substring match on title or description.
func (f TaskFilter) Matches(t Task) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.DueDate != "" && t.DueDate != f.DueDate {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.SearchQuery)); q != "" {
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

// Apply returns the tasks matching f, preserving order.
func (f TaskFilter) Apply(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// NewestFirst sorts tasks by creation time descending, the live query order.
// Ties fall back to the ID which embeds the inverted creation time.
func NewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ci, cj := tasks[i].CreatedTime(), tasks[j].CreatedTime()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
