package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	tasksEventName   = "tasks.request.metrics"
	tasksEventDomain = "taskboard.api"

	attrHTTPStatusCode = "http.status_code"
	attrRoute          = "http.route"
	attrPrefix         = "taskboard.tasks."
	attrTasksReturned  = attrPrefix + "tasks_returned"
	attrFiltered       = attrPrefix + "filtered"
	attrErrorStage     = attrPrefix + "error_stage"
)

var durationAttrs = []string{"total", "auth", "fetch", "encode"}

// logRecord is one logrus JSON line carrying an observability event.
type logRecord struct {
	EventName    string         `json:"event.name"`
	EventDomain  string         `json:"event.domain"`
	SeverityText string         `json:"severity_text"`
	Attributes   map[string]any `json:"attributes"`
}

type numericStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	sum   float64
}

func (n *numericStats) add(v float64) {
	if n.Count == 0 || v < n.Min {
		n.Min = v
	}
	if n.Count == 0 || v > n.Max {
		n.Max = v
	}
	n.Count++
	n.sum += v
	n.Avg = round(n.sum / float64(n.Count))
}

type boolCounts struct {
	True  int `json:"true"`
	False int `json:"false"`
}

type summaryOutput struct {
	EventName      string                   `json:"event_name"`
	EventDomain    string                   `json:"event_domain"`
	TotalEvents    int                      `json:"total_events"`
	SeverityCounts map[string]int           `json:"severity_counts"`
	StatusCounts   map[string]int           `json:"status_counts"`
	RouteCounts    map[string]int           `json:"route_counts"`
	DurationMs     map[string]*numericStats `json:"duration_ms"`
	TasksReturned  numericStats             `json:"tasks_returned"`
	Filtered       boolCounts               `json:"filtered"`
	ErrorStages    map[string]int           `json:"error_stages,omitempty"`
	ErrorEvents    int                      `json:"error_events"`
	WarnEvents     int                      `json:"warn_events"`
	SkippedLines   int                      `json:"skipped_lines"`
}

type collector struct {
	eventName   string
	eventDomain string
	out         summaryOutput
}

func newCollector(eventName, eventDomain string) *collector {
	return &collector{
		eventName:   eventName,
		eventDomain: eventDomain,
		out: summaryOutput{
			EventName:      eventName,
			EventDomain:    eventDomain,
			SeverityCounts: map[string]int{},
			StatusCounts:   map[string]int{},
			RouteCounts:    map[string]int{},
			DurationMs:     map[string]*numericStats{},
			ErrorStages:    map[string]int{},
		},
	}
}

// ingest accepts a raw log line. docker compose prefixes lines with
// "service | ", which is stripped.
func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}

	var rec logRecord
	if err := sonic.UnmarshalString(trimmed, &rec); err != nil {
		c.out.SkippedLines++
		return
	}
	if rec.EventName != c.eventName {
		return
	}
	if c.eventDomain != "" && rec.EventDomain != c.eventDomain {
		return
	}
	c.add(rec)
}

func (c *collector) add(rec logRecord) {
	c.out.TotalEvents++

	severity := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	c.out.SeverityCounts[severity]++
	switch severity {
	case "ERROR":
		c.out.ErrorEvents++
	case "WARN", "WARNING":
		c.out.WarnEvents++
	}

	attrs := rec.Attributes
	if attrs == nil {
		return
	}
	if v, ok := attrs[attrHTTPStatusCode].(float64); ok {
		c.out.StatusCounts[strconv.Itoa(int(v))]++
	}
	if v, ok := attrs[attrRoute].(string); ok && v != "" {
		c.out.RouteCounts[v]++
	}
	for _, name := range durationAttrs {
		v, ok := attrs[attrPrefix+name+"_ms"].(float64)
		if !ok {
			continue
		}
		stats := c.out.DurationMs[name]
		if stats == nil {
			stats = &numericStats{}
			c.out.DurationMs[name] = stats
		}
		stats.add(v)
	}
	if v, ok := attrs[attrTasksReturned].(float64); ok {
		c.out.TasksReturned.add(v)
	}
	if v, ok := attrs[attrFiltered].(bool); ok {
		if v {
			c.out.Filtered.True++
		} else {
			c.out.Filtered.False++
		}
	}
	if v, ok := attrs[attrErrorStage].(string); ok && v != "" {
		c.out.ErrorStages[v]++
	}
}

func (c *collector) summary() summaryOutput {
	out := c.out
	if len(out.ErrorStages) == 0 {
		out.ErrorStages = nil
	}
	return out
}

// ShortString is the one-line digest printed after a run.
func (s summaryOutput) ShortString() string {
	parts := []string{fmt.Sprintf("events=%d", s.TotalEvents)}
	if total, ok := s.DurationMs["total"]; ok {
		parts = append(parts, fmt.Sprintf("total_ms[avg=%s max=%s]", formatFloat(total.Avg), formatFloat(total.Max)))
	}
	statuses := make([]string, 0, len(s.StatusCounts))
	for code := range s.StatusCounts {
		statuses = append(statuses, code)
	}
	sort.Strings(statuses)
	for _, code := range statuses {
		parts = append(parts, fmt.Sprintf("status_%s=%d", code, s.StatusCounts[code]))
	}
	parts = append(parts, fmt.Sprintf("warn=%d error=%d skipped=%d", s.WarnEvents, s.ErrorEvents, s.SkippedLines))
	return strings.Join(parts, " ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
