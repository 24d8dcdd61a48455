package scenarios

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestCreateWithIdempotencyKeyReplays(t *testing.T) {
	client := newClient(t)

	key := fmt.Sprintf("idem-%d", time.Now().UnixNano())
	draft := map[string]any{"title": uniqueTitle("idem")}
	headers := map[string]string{"Idempotency-Key": key}

	var first, second task
	resp, err := client.Do(http.MethodPost, "/api/tasks", draft, &first, headers)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp, err = client.Do(http.MethodPost, "/api/tasks", draft, &second, headers)
	if err != nil {
		t.Fatalf("replayed create: %v", err)
	}
	if resp.StatusCode != http.StatusOK || second.ID != first.ID {
		t.Fatalf("expected replay of %s, got %d %s", first.ID, resp.StatusCode, second.ID)
	}

	count := 0
	for _, tk := range listTasks(t, client, "") {
		if tk.Title == first.Title {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one task, found %d", count)
	}
}
