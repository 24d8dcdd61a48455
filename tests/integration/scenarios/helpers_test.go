package scenarios

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"taskboard/tests/integration/internal/httpclient"
	testutil "taskboard/tests/utils"
)

type task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"dueDate"`
	UserID      string   `json:"userId"`
	Activities  []any    `json:"activities"`
	Attachments []string `json:"attachments"`
}

type tasksResponse struct {
	Tasks []task `json:"tasks"`
	Total int    `json:"total"`
}

type column struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Tasks  []task `json:"tasks"`
}

type board struct {
	Columns []column `json:"columns"`
	Total   int      `json:"total"`
}

type config struct {
	StreamSLAMs   int    `yaml:"stream_visibility_sla_ms"`
	PollTimeoutMs int    `yaml:"poll_timeout_ms"`
	StreamBase    string `yaml:"stream_base"`
}

func loadConfig() config {
	cfg := config{StreamSLAMs: 5000, PollTimeoutMs: 10000}
	data, err := os.ReadFile("../config.test.yaml")
	if err != nil {
		return cfg
	}
	var fileCfg config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg
	}
	if fileCfg.StreamSLAMs > 0 {
		cfg.StreamSLAMs = fileCfg.StreamSLAMs
	}
	if fileCfg.PollTimeoutMs > 0 {
		cfg.PollTimeoutMs = fileCfg.PollTimeoutMs
	}
	cfg.StreamBase = fileCfg.StreamBase
	return cfg
}

func apiBase() string {
	if base := os.Getenv("API_BASE"); base != "" {
		return base
	}
	return "http://localhost:8080"
}

// newClient returns a client for a fresh user so scenarios do not see each
// other's tasks. The test is skipped when the API is not running.
func newClient(t *testing.T) *httpclient.Client {
	t.Helper()
	base := apiBase()
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Skipf("skipping, API not reachable: %v", err)
	}
	resp.Body.Close()

	bearer := os.Getenv("TEST_BEARER")
	if bearer == "" {
		userID := fmt.Sprintf("it-%s-%d", t.Name(), time.Now().UnixNano())
		tok, err := testutil.TestTokenWithOptions(userID, testutil.TokenOptions{
			Name:     "Integration User",
			Email:    "integration@example.com",
			Audience: os.Getenv("AUTH0_AUDIENCE"),
		})
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		bearer = tok
	}
	return httpclient.New(base, bearer)
}

func createTask(t *testing.T, c *httpclient.Client, draft map[string]any) task {
	t.Helper()
	var created task
	if _, err := c.PostJSON("/api/tasks", draft, &created); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("create task returned no id")
	}
	return created
}

func listTasks(t *testing.T, c *httpclient.Client, query string) []task {
	t.Helper()
	var out tasksResponse
	if _, err := c.GetJSON("/api/tasks"+query, &out); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	return out.Tasks
}

// pollTasks polls /api/tasks until cond returns true or the configured
// timeout passes.
func pollTasks(t *testing.T, c *httpclient.Client, desc string, cond func([]task) bool) []task {
	t.Helper()
	deadline := time.Now().Add(time.Duration(loadConfig().PollTimeoutMs) * time.Millisecond)
	backoff := 100 * time.Millisecond
	for {
		var out tasksResponse
		_, err := c.GetJSON("/api/tasks", &out)
		if err == nil && cond(out.Tasks) {
			return out.Tasks
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s: %v", desc, err)
		}
		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func findTask(tasks []task, id string) (task, bool) {
	for _, tk := range tasks {
		if tk.ID == id {
			return tk, true
		}
	}
	return task{}, false
}

func uniqueTitle(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
