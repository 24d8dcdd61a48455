package storage

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard/domain"
)

// ListRecent returns the newest tasks of the user, at most limit rows. Row
// keys embed the inverted creation time so the partition scan order is
// already newest first.
func (s *Storage) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = domain.LiveQueryLimit
	}
	filter := partitionFilter(userID)
	top := int32(limit)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	tasks := make([]domain.Task, 0, limit)
	for pager.More() && len(tasks) < limit {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
			if len(tasks) == limit {
				break
			}
		}
	}
	domain.NewestFirst(tasks)
	return tasks, nil
}

// GetTask retrieves a single task along with its ETag.
func (s *Storage) GetTask(ctx context.Context, userID, taskID string) (domain.Task, string, error) {
	resp, err := s.taskTable.GetEntity(ctx, userID, taskID, nil)
	if err != nil {
		return domain.Task{}, "", translateError(err)
	}
	t, err := decodeTaskEntity(resp.Value)
	if err != nil {
		return domain.Task{}, "", err
	}
	return t, string(resp.ETag), nil
}

// InsertTask adds a new task row. It fails with domain.ErrAlreadyExists when
// the row key is taken.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	ent, err := toTaskEntity(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return translateError(err)
}

// ReplaceTask overwrites a task when its ETag still matches.
func (s *Storage) ReplaceTask(ctx context.Context, t domain.Task, etag string) error {
	ent, err := toTaskEntity(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	if etag != "" {
		et = azcore.ETag(etag)
	}
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	return translateError(err)
}

// DeleteTask removes a task row.
func (s *Storage) DeleteTask(ctx context.Context, userID, taskID string) error {
	_, err := s.taskTable.DeleteEntity(ctx, userID, taskID, nil)
	return translateError(err)
}
