package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// BasicSection is the key of the section created together with the entry.
const BasicSection = "basic_info"

// Entry list paging bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// entrySelect builds the SELECT list for entries joined with users.
// Section flags follow registry order so scanEntry can read them back.
func entrySelect() (string, []SectionDefinition) {
	defs := All()
	cols := []string{
		"e.id", "e.user_id", "u.email", "u.name", "e.team_name", "e.status",
		"e.score::float8", "e.admin_comment", "e.created_at", "e.updated_at", "e.submitted_at",
	}
	for _, def := range defs {
		cols = append(cols, "e."+def.Info.DoneColumn)
	}
	return strings.Join(cols, ", "), defs
}

func scanEntry(row pgx.Row, defs []SectionDefinition) (Entry, error) {
	var e Entry
	flags := make([]bool, len(defs))
	dest := []any{
		&e.ID, &e.UserID, &e.Email, &e.Name, &e.TeamName, &e.Status,
		&e.Score, &e.AdminComment, &e.CreatedAt, &e.UpdatedAt, &e.SubmittedAt,
	}
	for i := range flags {
		dest = append(dest, &flags[i])
	}
	if err := row.Scan(dest...); err != nil {
		return Entry{}, err
	}
	e.Sections = make(map[string]bool, len(defs))
	for i, def := range defs {
		e.Sections[def.Info.Key] = flags[i]
	}
	return e, nil
}

func (s *Service) loadEntry(ctx context.Context, q DBTX, where string, arg any) (Entry, error) {
	cols, defs := entrySelect()
	row := q.QueryRow(ctx, `SELECT `+cols+` FROM entries e JOIN users u ON u.id = e.user_id WHERE `+where, arg)
	e, err := scanEntry(row, defs)
	if err != nil {
		return Entry{}, notFound(err, ErrEntryNotFound)
	}
	return e, nil
}

// CreateEntry registers a new entry for actor together with its basic
// information. Both rows are written in one transaction. A user may hold
// only one entry.
func (s *Service) CreateEntry(ctx context.Context, actor Actor, basic map[string]any) (Entry, error) {
	def, ok := Get(BasicSection)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrInvalidSection, BasicSection)
	}
	data, complete, err := ValidateSection(def, basic)
	if err != nil {
		return Entry{}, err
	}

	var entryID uuid.UUID
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		entryID, err = insertEntry(ctx, tx, actor.UserID, def, data, complete)
		return err
	})
	if err != nil {
		return Entry{}, err
	}

	entry, err := s.loadEntry(ctx, s.pool, "e.id = $1", entryID)
	if err != nil {
		return Entry{}, err
	}

	logging.FromContext(ctx).Info("entry created", "entry_id", entry.ID, "user_id", actor.UserID)
	s.notifyBestEffort(ctx, "entry_received", entry)
	return entry, nil
}

// insertEntry writes the entry row and its basic_info row using q.
func insertEntry(ctx context.Context, q DBTX, userID uuid.UUID, def SectionDefinition, data map[string]any, complete bool) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO entries (user_id, team_name, %s) VALUES ($1, $2, $3)
		RETURNING id`, def.Info.DoneColumn),
		userID, teamName(data), complete,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "entries_user_id_key") {
			return uuid.Nil, ErrEntryExists
		}
		return uuid.Nil, fmt.Errorf("insert entry: %w", err)
	}

	if err := upsertSection(ctx, q, def, id, data, complete); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetEntry returns an entry. Participants may only read their own.
func (s *Service) GetEntry(ctx context.Context, actor Actor, id uuid.UUID) (Entry, error) {
	e, err := s.loadEntry(ctx, s.pool, "e.id = $1", id)
	if err != nil {
		return Entry{}, err
	}
	if !actor.Admin && e.UserID != actor.UserID {
		return Entry{}, ErrForbidden
	}
	return e, nil
}

// EntryForUser returns the entry owned by userID.
func (s *Service) EntryForUser(ctx context.Context, userID uuid.UUID) (Entry, error) {
	return s.loadEntry(ctx, s.pool, "e.user_id = $1", userID)
}

// ListEntries returns one page of entries, newest first.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) (EntryPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return EntryPage{}, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}

	where, args := entryWhere(filter)

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM entries e JOIN users u ON u.id = e.user_id WHERE `+where, args...,
	).Scan(&total); err != nil {
		return EntryPage{}, fmt.Errorf("count entries: %w", err)
	}

	cols, defs := entrySelect()
	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM entries e JOIN users u ON u.id = e.user_id WHERE %s
		 ORDER BY e.created_at DESC, e.id LIMIT $%d OFFSET $%d`,
		cols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return EntryPage{}, fmt.Errorf("list entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		return scanEntry(row, defs)
	})
	if err != nil {
		return EntryPage{}, fmt.Errorf("list entries: %w", err)
	}

	return EntryPage{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// entryWhere builds the WHERE clause for filter with positional args.
func entryWhere(filter EntryFilter) (string, []any) {
	conds := []string{"true"}
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("e.status = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(e.team_name ILIKE $%d OR u.name ILIKE $%d OR u.email ILIKE $%d)", n, n, n))
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// DeleteEntry removes an entry, its section rows and stored files.
func (s *Service) DeleteEntry(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.Admin {
		return ErrForbidden
	}

	var team string
	err := s.pool.QueryRow(ctx, `DELETE FROM entries WHERE id = $1 RETURNING team_name`, id).Scan(&team)
	if err != nil {
		return notFound(err, ErrEntryNotFound)
	}

	if err := s.store.DeletePrefix(entryPrefix(id)); err != nil {
		logging.FromContext(ctx).Error("delete entry files", "entry_id", id, "error", err)
	}

	s.record(ctx, s.pool, actor, ActionEntryDelete, &id, map[string]any{"team_name": team})
	logging.FromContext(ctx).Info("entry deleted", "entry_id", id)
	return nil
}

// authorize checks that actor may modify entry id and returns its owner and status.
func (s *Service) authorize(ctx context.Context, actor Actor, id uuid.UUID) (owner uuid.UUID, status EntryStatus, err error) {
	err = s.pool.QueryRow(ctx, `SELECT user_id, status FROM entries WHERE id = $1`, id).Scan(&owner, &status)
	if err != nil {
		return uuid.Nil, "", notFound(err, ErrEntryNotFound)
	}
	if !actor.Admin && owner != actor.UserID {
		return uuid.Nil, "", ErrForbidden
	}
	return owner, status, nil
}

func teamName(data map[string]any) string {
	if v, ok := data["team_name"].(string); ok {
		return v
	}
	return ""
}

func entryPrefix(id uuid.UUID) string {
	return "entries/" + id.String()
}
