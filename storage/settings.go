package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"taskboard/domain"
)

func decodeSettingsEntity(data []byte) (domain.Preferences, error) {
	var ent settingsEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Preferences{}, err
	}
	p := domain.Preferences{ViewMode: ent.ViewMode, CollapsedSections: []domain.Status{}}
	for _, s := range strings.Split(ent.CollapsedSections, ",") {
		if s = strings.TrimSpace(s); s != "" {
			p.CollapsedSections = append(p.CollapsedSections, domain.Status(s))
		}
	}
	return p.Normalize()
}

// FetchPreferences returns the stored view preferences, or the defaults when
// the user never saved any.
func (s *Storage) FetchPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	if s.settingsTable == nil {
		return domain.Preferences{}, errSettingsTable
	}
	resp, err := s.settingsTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		if err = translateError(err); errors.Is(err, domain.ErrNotFound) {
			return domain.DefaultPreferences(), nil
		}
		return domain.Preferences{}, err
	}
	return decodeSettingsEntity(resp.Value)
}

// SavePreferences replaces the user's view preferences.
func (s *Storage) SavePreferences(ctx context.Context, userID string, p domain.Preferences) error {
	if s.settingsTable == nil {
		return errSettingsTable
	}
	sections := make([]string, 0, len(p.CollapsedSections))
	for _, st := range p.CollapsedSections {
		sections = append(sections, string(st))
	}
	ent := settingsEntity{
		entity:            entity{PartitionKey: userID, RowKey: userID},
		ViewMode:          p.ViewMode,
		CollapsedSections: strings.Join(sections, ","),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.settingsTable.UpsertEntity(ctx, payload, nil)
	return translateError(err)
}
