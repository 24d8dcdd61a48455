package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/domain"
)

type fakeSnapshots struct {
	mu    sync.Mutex
	tasks []domain.Task
	err   error
	users []string
}

func (f *fakeSnapshots) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return f.tasks, f.err
}

func (f *fakeSnapshots) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeHub struct {
	mu        sync.Mutex
	connected map[string]bool
	got       map[string][]string
}

func (h *fakeHub) HasClients(userID string) bool { return h.connected[userID] }

func (h *fakeHub) Broadcast(userID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.got == nil {
		h.got = make(map[string][]string)
	}
	h.got[userID] = append(h.got[userID], string(data))
}

func (h *fakeHub) messages(userID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.got[userID]...)
}

func encodeTitles(tasks []domain.Task) ([]byte, error) {
	out := ""
	for _, t := range tasks {
		out += t.Title + ";"
	}
	return []byte(out), nil
}

func TestSubscribeUpdatesBroadcastsFreshSnapshot(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	logger, _ := test.NewNullLogger()
	snaps := &fakeSnapshots{tasks: []domain.Task{{Title: "a"}, {Title: "b"}}}
	hub := &fakeHub{connected: map[string]bool{"user1": true}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		SubscribeUpdates(ctx, logger, rc, snaps, "chan", hub, encodeTitles)
		close(done)
	}()
	// wait for subscription to start
	time.Sleep(50 * time.Millisecond)

	for _, payload := range []string{
		`{"userId":"user1","type":"task-created"}`,
		`{"userId":"user1","type":"user-logged-in"}`,
		`{"userId":"user2","type":"task-updated"}`,
		`not json`,
	} {
		if err := rc.Publish(context.Background(), "chan", payload).Err(); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	if got := hub.messages("user1"); len(got) != 1 || got[0] != "a;b;" {
		t.Fatalf("unexpected broadcasts: %v", got)
	}
	if snaps.calls() != 1 {
		t.Fatalf("expected only task events of connected users to query, got %d", snaps.calls())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SubscribeUpdates did not exit")
	}
}

func TestHandleMessageSkipsOnQueryError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	snaps := &fakeSnapshots{err: errors.New("table unavailable")}
	hub := &fakeHub{connected: map[string]bool{"u": true}}

	handleMessage(context.Background(), logger, snaps, hub, encodeTitles, `{"userId":"u","type":"task-deleted"}`)

	if len(hub.messages("u")) != 0 {
		t.Fatalf("expected no broadcast on error")
	}
	if entry := hook.LastEntry(); entry == nil || entry.Message != "refresh snapshot failed" {
		t.Fatalf("expected error to be logged, got %+v", entry)
	}
}
