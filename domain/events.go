package domain

const (
	TaskCreated   = "task-created"
	TaskUpdated   = "task-updated"
	TaskMoved     = "task-moved"
	TaskDeleted   = "task-deleted"
	UserLoggedIn  = "user-logged-in"
	UserLoggedOut = "user-logged-out"
	PrefsUpdated  = "preferences-updated"
)

// ChangeEvent announces that a user's task collection changed. Subscribers
// never apply it as a diff; they re-run the live query for UserID.
type ChangeEvent struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	TaskID    string `json:"taskId,omitempty"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is the full live query result delivered to stream clients.
type Snapshot struct {
	Tasks []Task `json:"tasks"`
}

// AffectsTasks reports whether subscribers must re-run the live query.
func (e ChangeEvent) AffectsTasks() bool {
	switch e.Type {
	case TaskCreated, TaskUpdated, TaskMoved, TaskDeleted:
		return true
	}
	return false
}
