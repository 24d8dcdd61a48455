package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"taskboard/domain"
)

// GetUser retrieves a stored profile.
func (s *Storage) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if s.userTable == nil {
		return domain.User{}, errUsersTable
	}
	resp, err := s.userTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		return domain.User{}, translateError(err)
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.User{}, err
	}
	u := domain.User{ID: ent.RowKey, Name: ent.Name, Email: ent.Email}
	if ent.LastLoginAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, ent.LastLoginAt); err == nil {
			u.LastLoginAt = ts
		}
	}
	return u, nil
}

// UpsertUser creates or replaces a user entity.
func (s *Storage) UpsertUser(ctx context.Context, u domain.User) error {
	if s.userTable == nil {
		return errUsersTable
	}
	ent := userEntity{
		entity: entity{PartitionKey: u.ID, RowKey: u.ID},
		Name:   strings.TrimSpace(u.Name),
		Email:  strings.TrimSpace(u.Email),
	}
	if !u.LastLoginAt.IsZero() {
		ent.LastLoginAt = u.LastLoginAt.UTC().Format(time.RFC3339Nano)
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.userTable.UpsertEntity(ctx, payload, nil)
	return translateError(err)
}
