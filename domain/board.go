package domain

// Column is one status section of the list view or one lane of the board.
type Column struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
	Tasks  []Task `json:"tasks"`
}

// Board holds the three status columns in display order.
type Board struct {
	Columns []Column `json:"columns"`
	Total   int      `json:"total"`
}

// GroupByStatus splits tasks into the status columns, keeping the incoming
// order inside each column. Every column is present even when empty.
func GroupByStatus(tasks []Task) Board {
	idx := make(map[Status]int, len(Statuses))
	b := Board{Columns: make([]Column, len(Statuses))}
	for i, s := range Statuses {
		idx[s] = i
		b.Columns[i] = Column{Status: s, Tasks: []Task{}}
	}
	for _, t := range tasks {
		i, ok := idx[t.Status]
		if !ok {
			continue
		}
		b.Columns[i].Tasks = append(b.Columns[i].Tasks, t)
		b.Columns[i].Count++
		b.Total++
	}
	return b
}

// Column returns the column for s.
func (b Board) Column(s Status) (Column, bool) {
	for _, c := range b.Columns {
		if c.Status == s {
			return c, true
		}
	}
	return Column{}, false
}
