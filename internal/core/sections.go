package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// GetSection returns the stored data of one section with its deadline.
// A section that was never saved returns empty data.
func (s *Service) GetSection(ctx context.Context, actor Actor, entryID uuid.UUID, key string) (SectionData, error) {
	def, ok := Get(key)
	if !ok {
		return SectionData{}, fmt.Errorf("%w: %s", ErrInvalidSection, key)
	}
	if _, _, err := s.authorize(ctx, actor, entryID); err != nil {
		return SectionData{}, err
	}

	sd, err := loadSection(ctx, s.pool, def, entryID)
	if err != nil {
		return SectionData{}, err
	}
	sd.Deadline, err = s.sectionDeadline(ctx, def)
	if err != nil {
		return SectionData{}, err
	}
	return sd, nil
}

func loadSection(ctx context.Context, q DBTX, def SectionDefinition, entryID uuid.UUID) (SectionData, error) {
	sd := SectionData{EntryID: entryID, Section: def.Info.Key, Data: map[string]any{}}

	var raw []byte
	var updated time.Time
	err := q.QueryRow(ctx, fmt.Sprintf(
		`SELECT data, completed, updated_at FROM %s WHERE entry_id = $1`, def.Info.Table),
		entryID,
	).Scan(&raw, &sd.Completed, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return sd, nil
	}
	if err != nil {
		return SectionData{}, fmt.Errorf("load section %s: %w", def.Info.Key, err)
	}
	if err := json.Unmarshal(raw, &sd.Data); err != nil {
		return SectionData{}, fmt.Errorf("decode section %s: %w", def.Info.Key, err)
	}
	sd.UpdatedAt = &updated
	return sd, nil
}

// SaveSection validates payload and stores it as the section's data,
// replacing what was there. The detail row and the entry's status flag are
// updated in one transaction. Participants may only edit their own entry
// before the section deadline; admins bypass the deadline.
func (s *Service) SaveSection(ctx context.Context, actor Actor, entryID uuid.UUID, key string, payload map[string]any) (SectionData, error) {
	def, ok := Get(key)
	if !ok {
		return SectionData{}, fmt.Errorf("%w: %s", ErrInvalidSection, key)
	}
	owner, _, err := s.authorize(ctx, actor, entryID)
	if err != nil {
		return SectionData{}, err
	}

	deadline, err := s.sectionDeadline(ctx, def)
	if err != nil {
		return SectionData{}, err
	}
	if deadline != nil && deadline.Passed && !actor.Admin {
		return SectionData{}, fmt.Errorf("%w: %s closed at %s", ErrDeadlinePassed, def.Info.Label, deadline.Display)
	}

	data, complete, err := ValidateSection(def, payload)
	if err != nil {
		return SectionData{}, err
	}

	var sd SectionData
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := upsertSection(ctx, tx, def, entryID, data, complete); err != nil {
			return err
		}
		if err := setSectionFlag(ctx, tx, def, entryID, data, complete); err != nil {
			return err
		}
		var err error
		sd, err = loadSection(ctx, tx, def, entryID)
		return err
	})
	if err != nil {
		return SectionData{}, err
	}
	sd.Deadline = deadline

	if actor.Admin && owner != actor.UserID {
		s.record(ctx, s.pool, actor, ActionSectionOverride, &entryID, map[string]any{"section": key})
	}
	logging.FromContext(ctx).Info("section saved",
		"entry_id", entryID, "section", key, "completed", complete)
	return sd, nil
}

// upsertSection replaces the section row for entryID.
func upsertSection(ctx context.Context, q DBTX, def SectionDefinition, entryID uuid.UUID, data map[string]any, complete bool) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode section %s: %w", def.Info.Key, err)
	}
	_, err = q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (entry_id, data, completed, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (entry_id) DO UPDATE SET
			data = EXCLUDED.data, completed = EXCLUDED.completed, updated_at = now()`,
		def.Info.Table), entryID, payload, complete)
	if err != nil {
		return fmt.Errorf("save section %s: %w", def.Info.Key, err)
	}
	return nil
}

// setSectionFlag updates the entry's per-section status flag. Saving basic
// information also refreshes the denormalized team name.
func setSectionFlag(ctx context.Context, q DBTX, def SectionDefinition, entryID uuid.UUID, data map[string]any, complete bool) error {
	query := fmt.Sprintf(`UPDATE entries SET %s = $2, updated_at = now() WHERE id = $1`, def.Info.DoneColumn)
	args := []any{entryID, complete}
	if def.Info.Key == BasicSection {
		query = fmt.Sprintf(`UPDATE entries SET %s = $2, team_name = $3, updated_at = now() WHERE id = $1`, def.Info.DoneColumn)
		args = append(args, teamName(data))
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// sectionDeadline returns the configured deadline of def, or nil when none is set.
func (s *Service) sectionDeadline(ctx context.Context, def SectionDefinition) (*DeadlineInfo, error) {
	value, err := s.setting(ctx, def.Info.DeadlineKey())
	if err != nil || value == "" {
		return nil, err
	}
	t, err := ParseDeadline(value)
	if err != nil {
		logging.FromContext(ctx).Warn("ignoring malformed deadline", "key", def.Info.DeadlineKey(), "value", value)
		return nil, nil
	}
	return NewDeadlineInfo(s.now(), t, s.loc), nil
}
