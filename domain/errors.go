package domain

import "errors"

var (
	// ErrNotFound is returned when a task or profile does not exist for the user.
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyConflict indicates that the underlying storage rejected an
	// update because a newer version of the entity is already persisted.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrAlreadyExists is returned when an insert collides with an existing row.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidTask wraps every field level validation failure.
	ErrInvalidTask = errors.New("invalid task")
	// ErrEmptyUpdate is returned for updates that carry no fields.
	ErrEmptyUpdate = errors.New("update had no fields")
)
