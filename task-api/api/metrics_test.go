package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"taskboard/domain"
)

// observedServer is a test server whose logger and tracer are captured.
type observedServer struct {
	e        *echo.Echo
	store    *memStore
	hook     *test.Hook
	exporter *tracetest.InMemoryExporter
}

func newObservedServer(t *testing.T) *observedServer {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})
	store := newMemStore()
	e := echo.New()
	Register(e, Deps{Tasks: store, Profiles: store, Auth: stubAuth{}}, logger)
	return &observedServer{e: e, store: store, hook: hook, exporter: exporter}
}

func (s *observedServer) get(path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, strings.NewReader(""))
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *observedServer) event(t *testing.T) *log.Entry {
	t.Helper()
	for _, entry := range s.hook.AllEntries() {
		if entry.Message == "observability.event" {
			return entry
		}
	}
	t.Fatalf("no observability.event logged among %d entries", len(s.hook.AllEntries()))
	return nil
}

func (s *observedServer) span(t *testing.T) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := s.exporter.GetSpans().Snapshots()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	return spans[0]
}

func spanAttrs(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestListRequestReportsMetrics(t *testing.T) {
	s := newObservedServer(t)
	now := time.Now().UTC()
	seedTask(t, s.store, "write report", domain.StatusTodo, now.Add(-time.Minute))
	seedTask(t, s.store, "buy milk", domain.StatusTodo, now)

	rec := s.get("/api/tasks?q=report", "Bearer user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	entry := s.event(t)
	if entry.Data["event.name"] != tasksEventName || entry.Data["event.domain"] != tasksEventDomain {
		t.Fatalf("unexpected event identity: %v/%v", entry.Data["event.name"], entry.Data["event.domain"])
	}
	if entry.Data["severity_text"] != "INFO" {
		t.Fatalf("unexpected severity: %v", entry.Data["severity_text"])
	}
	attrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrs["http.route"] != "/api/tasks" || attrs[attrPrefix+"filtered"] != true {
		t.Fatalf("unexpected attributes: %#v", attrs)
	}
	if n, ok := attrs[attrPrefix+"tasks_returned"].(int64); !ok || n != 1 {
		t.Fatalf("expected one task returned, got %#v", attrs[attrPrefix+"tasks_returned"])
	}
	if _, ok := attrs[attrPrefix+"fetch_ms"]; !ok {
		t.Fatalf("expected fetch timing, got %#v", attrs)
	}
	if id, ok := entry.Data["trace_id"].(string); !ok || id == "" {
		t.Fatalf("expected trace id, got %#v", entry.Data["trace_id"])
	}

	span := s.span(t)
	if span.Name() != tasksSpanName || span.Status().Code != codes.Ok {
		t.Fatalf("unexpected span %s status %v", span.Name(), span.Status())
	}
	if code := spanAttrs(span.Attributes())["http.status_code"]; code != int64(http.StatusOK) {
		t.Fatalf("unexpected span status code: %#v", code)
	}
}

func TestBoardStorageFailureMarksSpan(t *testing.T) {
	s := newObservedServer(t)
	s.store.listErr = errors.New("table unavailable")

	rec := s.get("/api/board", "Bearer user-1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	entry := s.event(t)
	if entry.Data["severity_text"] != "ERROR" {
		t.Fatalf("expected ERROR severity, got %v", entry.Data["severity_text"])
	}
	span := s.span(t)
	if span.Status().Code != codes.Error {
		t.Fatalf("expected error span status, got %v", span.Status())
	}
	var found bool
	for _, ev := range span.Events() {
		if ev.Name != "observability.event" {
			continue
		}
		found = true
		if stage := spanAttrs(ev.Attributes)[attrPrefix+"error_stage"]; stage != "storage" {
			t.Fatalf("expected storage error stage, got %#v", stage)
		}
	}
	if !found {
		t.Fatalf("expected observability.event on span")
	}
}

func TestUnauthenticatedListIsWarning(t *testing.T) {
	s := newObservedServer(t)

	rec := s.get("/api/tasks", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	entry := s.event(t)
	if entry.Data["severity_text"] != "WARN" || entry.Data["severity_number"] != 13 {
		t.Fatalf("unexpected severity: %v/%v", entry.Data["severity_text"], entry.Data["severity_number"])
	}
	attrs := entry.Data["attributes"].(map[string]any)
	if attrs[attrPrefix+"error_stage"] != "auth" {
		t.Fatalf("expected auth error stage, got %#v", attrs[attrPrefix+"error_stage"])
	}
	if s.span(t).Status().Code != codes.Ok {
		t.Fatalf("client errors should not mark the span as failed")
	}
}

func TestSeverityForStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusOK:                  "INFO",
		http.StatusNoContent:           "INFO",
		http.StatusNotFound:            "WARN",
		http.StatusServiceUnavailable:  "ERROR",
		http.StatusInternalServerError: "ERROR",
	}
	for status, want := range cases {
		if got, _ := severityForStatus(status, nil); got != want {
			t.Fatalf("severityForStatus(%d) = %s, want %s", status, got, want)
		}
	}
	if got, n := severityForStatus(http.StatusOK, errors.New("encode")); got != "ERROR" || n != 17 {
		t.Fatalf("expected error severity when err is set, got %s/%d", got, n)
	}
}
