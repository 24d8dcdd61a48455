package domain

import (
	"fmt"
	"strings"
	"time"
)

// DueDateLayout is the canonical stored form of a due date.
const DueDateLayout = "2006-01-02"

var dueDateLayouts = []string{
	DueDateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"02 Jan, 2006",
	"Jan 02, 2006",
	"Jan 2, 2006",
}

// NormalizeDueDate parses any accepted due date spelling and returns it in
// DueDateLayout.
func NormalizeDueDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Format(DueDateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized due date %q", ErrInvalidTask, s)
}
