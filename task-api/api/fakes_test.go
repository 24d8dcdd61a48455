package api

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"taskboard/auth"
	"taskboard/domain"
)

type storedTask struct {
	task    domain.Task
	version int
}

// memStore is an in-memory TaskStore and ProfileStore with ETag semantics.
type memStore struct {
	mu            sync.Mutex
	tasks         map[string]map[string]storedTask
	users         map[string]domain.User
	prefs         map[string]domain.Preferences
	conflicts     int
	listErr       error
	lastListLimit int
}

func newMemStore() *memStore {
	return &memStore{
		tasks: make(map[string]map[string]storedTask),
		users: make(map[string]domain.User),
		prefs: make(map[string]domain.Preferences),
	}
}

func (m *memStore) put(t domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks[t.UserID] == nil {
		m.tasks[t.UserID] = make(map[string]storedTask)
	}
	m.tasks[t.UserID][t.ID] = storedTask{task: t, version: 1}
}

func (m *memStore) count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks[userID])
}

func (m *memStore) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastListLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Task, 0, len(m.tasks[userID]))
	for _, st := range m.tasks[userID] {
		out = append(out, st.task)
	}
	domain.NewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetTask(ctx context.Context, userID, taskID string) (domain.Task, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tasks[userID][taskID]
	if !ok {
		return domain.Task{}, "", domain.ErrNotFound
	}
	return st.task, strconv.Itoa(st.version), nil
}

func (m *memStore) InsertTask(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.UserID][t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if m.tasks[t.UserID] == nil {
		m.tasks[t.UserID] = make(map[string]storedTask)
	}
	m.tasks[t.UserID][t.ID] = storedTask{task: t, version: 1}
	return nil
}

func (m *memStore) ReplaceTask(ctx context.Context, t domain.Task, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tasks[t.UserID][t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		st.version++
		m.tasks[t.UserID][t.ID] = st
		return domain.ErrConcurrencyConflict
	}
	if strconv.Itoa(st.version) != etag {
		return domain.ErrConcurrencyConflict
	}
	m.tasks[t.UserID][t.ID] = storedTask{task: t, version: st.version + 1}
	return nil
}

func (m *memStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[userID][taskID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tasks[userID], taskID)
	return nil
}

func (m *memStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memStore) UpsertUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) FetchPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return domain.DefaultPreferences(), nil
	}
	return p, nil
}

func (m *memStore) SavePreferences(ctx context.Context, userID string, p domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[userID] = p
	return nil
}

type stubAuth struct{}

func (stubAuth) IdentityFromAuthHeader(h string) (auth.Identity, error) {
	if h == "" {
		return auth.Identity{}, auth.ErrMissingAuthorization
	}
	if h != "Bearer user-1" {
		return auth.Identity{}, errors.New("invalid token")
	}
	return auth.Identity{Subject: "user-1", Name: "Ada", Email: "ada@example.com"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, ev domain.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}
