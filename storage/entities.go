package storage

import (
	"encoding/json"

	"taskboard/domain"
)

// entity carries the table keys shared by every row.
type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// taskEntity is the flattened table row for a task. Lists are stored as JSON
// strings because table properties are scalar.
type taskEntity struct {
	entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Category    string `json:"Category"`
	Status      string `json:"Status"`
	Priority    string `json:"Priority"`
	DueDate     string `json:"DueDate"`
	Attachments string `json:"Attachments"`
	Activities  string `json:"Activities"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
	CreatedBy   string `json:"CreatedBy"`
}

func toTaskEntity(t domain.Task) (taskEntity, error) {
	attachments := t.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	att, err := json.Marshal(attachments)
	if err != nil {
		return taskEntity{}, err
	}
	activities := t.Activities
	if activities == nil {
		activities = []domain.Activity{}
	}
	acts, err := json.Marshal(activities)
	if err != nil {
		return taskEntity{}, err
	}
	return taskEntity{
		entity:      entity{PartitionKey: t.UserID, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Category:    string(t.Category),
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		Attachments: string(att),
		Activities:  string(acts),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CreatedBy:   t.CreatedBy,
	}, nil
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		UserID:      ent.PartitionKey,
		Title:       ent.Title,
		Description: ent.Description,
		Category:    domain.Category(ent.Category),
		Status:      domain.Status(ent.Status),
		Priority:    domain.Priority(ent.Priority),
		DueDate:     ent.DueDate,
		CreatedAt:   ent.CreatedAt,
		UpdatedAt:   ent.UpdatedAt,
		CreatedBy:   ent.CreatedBy,
		Activities:  []domain.Activity{},
	}
	if ent.Attachments != "" {
		if err := json.Unmarshal([]byte(ent.Attachments), &t.Attachments); err != nil {
			return domain.Task{}, err
		}
		if len(t.Attachments) == 0 {
			t.Attachments = nil
		}
	}
	if ent.Activities != "" {
		if err := json.Unmarshal([]byte(ent.Activities), &t.Activities); err != nil {
			return domain.Task{}, err
		}
	}
	return t, nil
}

type userEntity struct {
	entity
	Name        string `json:"Name,omitempty"`
	Email       string `json:"Email,omitempty"`
	LastLoginAt string `json:"LastLoginAt,omitempty"`
}

type settingsEntity struct {
	entity
	ViewMode          string `json:"ViewMode"`
	CollapsedSections string `json:"CollapsedSections"`
}
