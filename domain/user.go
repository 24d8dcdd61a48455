package domain

import "time"

// User is the profile mirrored from the identity provider on sign-in.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	LastLoginAt time.Time `json:"lastLoginAt,omitempty"`
}
