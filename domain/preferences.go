package domain

import "fmt"

const (
	ViewList  = "list"
	ViewBoard = "board"
)

// Preferences are the per-user view settings.
type Preferences struct {
	ViewMode          string   `json:"viewMode"`
	CollapsedSections []Status `json:"collapsedSections"`
}

// DefaultPreferences is what a user sees before saving anything.
func DefaultPreferences() Preferences {
	return Preferences{ViewMode: ViewList, CollapsedSections: []Status{}}
}

// Normalize fills defaults and rejects unknown values.
func (p Preferences) Normalize() (Preferences, error) {
	if p.ViewMode == "" {
		p.ViewMode = ViewList
	}
	if p.ViewMode != ViewList && p.ViewMode != ViewBoard {
		return Preferences{}, fmt.Errorf("%w: unknown view mode %q", ErrInvalidTask, p.ViewMode)
	}
	seen := make(map[Status]bool, len(p.CollapsedSections))
	out := make([]Status, 0, len(p.CollapsedSections))
	for _, s := range p.CollapsedSections {
		if !s.Valid() {
			return Preferences{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, s)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	p.CollapsedSections = out
	return p, nil
}
