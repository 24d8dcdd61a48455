package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 300
	MaxAttachments       = 10
	MaxActivities        = 50
)

// Task represents a single board item owned by one user.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    Category   `json:"category"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     string     `json:"dueDate"`
	Attachments []string   `json:"attachments,omitempty"`
	Activities  []Activity `json:"activities"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
	CreatedBy   string     `json:"createdBy"`
	UserID      string     `json:"userId"`
}

// Activity is one entry of a task's history.
type Activity struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
}

// TaskDraft carries the fields of the add form.
type TaskDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// TaskUpdate carries partial edits. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Attachments *[]string `json:"attachments,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil && u.Status == nil &&
		u.Priority == nil && u.DueDate == nil && u.Attachments == nil
}

// NewTaskID returns a row key whose lexical order is newest first, so a plain
// partition scan yields tasks ordered by creation time descending.
func NewTaskID(createdAt time.Time) string {
	inverted := math.MaxInt64 - createdAt.UnixNano()
	return fmt.Sprintf("%019d-%s", inverted, uuid.NewString()[:8])
}

// NewTask validates a draft, fills in defaults and stamps ownership.
func NewTask(userID string, d TaskDraft, now time.Time) (Task, error) {
	now = now.UTC()
	t := Task{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Category:    d.Category,
		Status:      d.Status,
		Priority:    d.Priority,
		Attachments: append([]string(nil), d.Attachments...),
		CreatedBy:   userID,
		UserID:      userID,
	}
	if t.Category == "" {
		t.Category = CategoryWork
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	due := d.DueDate
	if strings.TrimSpace(due) == "" {
		due = now.Format(DueDateLayout)
	}
	var err error
	if t.DueDate, err = NormalizeDueDate(due); err != nil {
		return Task{}, err
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	ts := now.Format(time.RFC3339Nano)
	t.ID = NewTaskID(now)
	t.CreatedAt = ts
	t.UpdatedAt = ts
	t.Activities = []Activity{{Action: "created", Timestamp: now, UserID: userID}}
	return t, nil
}

// Validate checks the invariants every stored task satisfies.
func (t Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTask, MaxTitleLength)
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidTask, MaxDescriptionLength)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTask, t.Category)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, t.Priority)
	}
	if len(t.Attachments) > MaxAttachments {
		return fmt.Errorf("%w: at most %d attachments", ErrInvalidTask, MaxAttachments)
	}
	for _, a := range t.Attachments {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: attachment name is empty", ErrInvalidTask)
		}
	}
	return nil
}

// Apply merges the update into t, refreshes UpdatedAt and records an
// activity entry. It returns the names of the fields that actually changed;
// an update that changes nothing leaves t untouched.
func (t *Task) Apply(u TaskUpdate, userID string, now time.Time) ([]string, error) {
	if u.Empty() {
		return nil, ErrEmptyUpdate
	}
	now = now.UTC()
	next := *t
	var changed []string
	var statusChange string

	if u.Title != nil && strings.TrimSpace(*u.Title) != next.Title {
		next.Title = strings.TrimSpace(*u.Title)
		changed = append(changed, "title")
	}
	if u.Description != nil && *u.Description != next.Description {
		next.Description = *u.Description
		changed = append(changed, "description")
	}
	if u.Category != nil && *u.Category != next.Category {
		next.Category = *u.Category
		changed = append(changed, "category")
	}
	if u.Priority != nil && *u.Priority != next.Priority {
		next.Priority = *u.Priority
		changed = append(changed, "priority")
	}
	if u.DueDate != nil {
		due, err := NormalizeDueDate(*u.DueDate)
		if err != nil {
			return nil, err
		}
		if due != next.DueDate {
			next.DueDate = due
			changed = append(changed, "dueDate")
		}
	}
	if u.Attachments != nil && !equalStrings(*u.Attachments, next.Attachments) {
		next.Attachments = append([]string(nil), (*u.Attachments)...)
		changed = append(changed, "attachments")
	}
	if u.Status != nil && *u.Status != next.Status {
		statusChange = fmt.Sprintf("status changed from %s to %s", next.Status, *u.Status)
		next.Status = *u.Status
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return nil, nil
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if fields := withoutStatus(changed); len(fields) > 0 {
		next.appendActivity(Activity{Action: "updated " + strings.Join(fields, ", "), Timestamp: now, UserID: userID})
	}
	if statusChange != "" {
		next.appendActivity(Activity{Action: statusChange, Timestamp: now, UserID: userID})
	}
	next.UpdatedAt = now.Format(time.RFC3339Nano)
	*t = next
	return changed, nil
}

func (t *Task) appendActivity(a Activity) {
	acts := make([]Activity, 0, len(t.Activities)+1)
	acts = append(acts, t.Activities...)
	acts = append(acts, a)
	if len(acts) > MaxActivities {
		acts = acts[len(acts)-MaxActivities:]
	}
	t.Activities = acts
}

// CreatedTime parses CreatedAt, returning the zero time for malformed values.
func (t Task) CreatedTime() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func withoutStatus(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "status" {
			out = append(out, f)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
