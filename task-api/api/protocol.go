package api

import "taskboard/domain"

const requestMaxSize = 64 * 1024 // 64 KiB

const idempotencyHeader = "Idempotency-Key"

type errorResponse struct {
	Error string `json:"error"`
}

// GET /api/tasks response body
type tasksResponse struct {
	Tasks    []domain.Task   `json:"tasks"`
	Sections []domain.Column `json:"sections,omitempty"`
	Total    int             `json:"total"`
}

// POST /api/tasks/{id}/move response body
type moveResponse struct {
	Moved bool         `json:"moved"`
	Task  *domain.Task `json:"task,omitempty"`
}

// POST /api/tasks/bulk/* request body
type bulkRequest struct {
	IDs    []string      `json:"ids"`
	Status domain.Status `json:"status,omitempty"`
}

type bulkResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// POST /api/tasks/bulk/* response body
type bulkResponse struct {
	Results   []bulkResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// POST /api/user request body
type signInRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// GET /api/user response body
type userResponse struct {
	ID      string       `json:"id"`
	Profile *domain.User `json:"profile,omitempty"`
}
