package domain

import "fmt"

// DraggableLocation identifies a position inside a droppable column.
type DraggableLocation struct {
	DroppableID string `json:"droppableId"`
	Index       int    `json:"index"`
}

// DropResult is what a board client reports when a drag ends.
type DropResult struct {
	DraggableID string             `json:"draggableId"`
	Source      DraggableLocation  `json:"source"`
	Destination *DraggableLocation `json:"destination"`
	Reason      string             `json:"reason,omitempty"`
	Mode        string             `json:"mode,omitempty"`
	Type        string             `json:"type,omitempty"`
}

// TargetStatus interprets a drag end. ok is false when the drop does not
// require a write: the card was released outside any column.
func (r DropResult) TargetStatus() (s Status, ok bool, err error) {
	if r.Destination == nil || r.Destination.DroppableID == "" {
		return "", false, nil
	}
	s = Status(r.Destination.DroppableID)
	if !s.Valid() {
		return "", false, fmt.Errorf("%w: %q is not a status column", ErrInvalidTask, r.Destination.DroppableID)
	}
	return s, true, nil
}

// MoveUpdate returns the update that moves t to s, or ok=false when t is
// already in that column.
func MoveUpdate(t Task, s Status) (TaskUpdate, bool) {
	if t.Status == s {
		return TaskUpdate{}, false
	}
	return TaskUpdate{Status: &s}, true
}
