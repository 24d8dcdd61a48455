package api

import (
	"context"

	"taskboard/auth"
	"taskboard/domain"
)

// TaskStore abstracts the task collection for handlers.
type TaskStore interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (domain.Task, string, error)
	InsertTask(ctx context.Context, t domain.Task) error
	ReplaceTask(ctx context.Context, t domain.Task, etag string) error
	DeleteTask(ctx context.Context, userID, taskID string) error
}

// ProfileStore persists user profiles and view preferences.
type ProfileStore interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	UpsertUser(ctx context.Context, u domain.User) error
	FetchPreferences(ctx context.Context, userID string) (domain.Preferences, error)
	SavePreferences(ctx context.Context, userID string, p domain.Preferences) error
}

// Authenticator is implemented by types able to verify Authorization headers.
type Authenticator interface {
	IdentityFromAuthHeader(string) (auth.Identity, error)
}

// Deduper remembers the task created for an idempotency key.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Bind stores the id of the task created for key.
	Bind(ctx context.Context, userID, key, taskID string) error
	// Lookup returns the task bound to key, or "" while the create is in flight.
	Lookup(ctx context.Context, userID, key string) (string, error)
	// Remove deletes a previously added key, used when the create fails.
	Remove(ctx context.Context, userID, key string) error
}

// Notifier announces committed writes to live query subscribers.
type Notifier interface {
	Notify(ctx context.Context, ev domain.ChangeEvent) error
}

// Deps bundles what the handlers need.
type Deps struct {
	Tasks    TaskStore
	Profiles ProfileStore
	Auth     Authenticator
	Deduper  Deduper
	Notifier Notifier
}
