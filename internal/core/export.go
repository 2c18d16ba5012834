package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/DanceEntry/internal/csvtemplate"
)

// EntriesTemplate is the template kind for bulk entry import.
const EntriesTemplate = "entries"

// TemplateKinds lists every CSV template kind: the entries import followed
// by one per section.
func TemplateKinds() []string {
	kinds := []string{EntriesTemplate}
	for _, def := range All() {
		kinds = append(kinds, def.Info.Key)
	}
	return kinds
}

// TemplateCSV returns the CSV template of kind: a BOM, the header row and
// one sample row.
func TemplateCSV(kind string) (string, error) {
	if kind == EntriesTemplate {
		specs := ImportSpecs()
		columns := make([]string, len(specs))
		for i, s := range specs {
			columns[i] = s.Name
		}
		sample := []string{"dancer@example.com", "Aoi Tanaka"}
		if def, ok := Get(BasicSection); ok {
			sample = append(sample, def.Info.Sample...)
		}
		if len(sample) != len(columns) {
			sample = nil
		}
		return csvtemplate.Generate(columns, sample), nil
	}

	def, ok := Get(kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidExportKey, kind)
	}
	return csvtemplate.Generate(def.Info.Columns, def.Info.Sample), nil
}

// ExportEntries writes every entry with its review fields and section flags.
func (s *Service) ExportEntries(ctx context.Context, w io.Writer) (int, error) {
	cols, defs := entrySelect()
	rows, err := s.pool.Query(ctx, `SELECT `+cols+` FROM entries e JOIN users u ON u.id = e.user_id ORDER BY e.created_at, e.id`)
	if err != nil {
		return 0, fmt.Errorf("export entries: %w", err)
	}
	defer rows.Close()

	cw := csvtemplate.NewWriter(w)
	header := []string{"entry_id", "email", "name", "team_name", "status", "score", "admin_comment", "created_at", "submitted_at"}
	for _, def := range defs {
		header = append(header, def.Info.DoneColumn)
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	n := 0
	for rows.Next() {
		e, err := scanEntry(rows, defs)
		if err != nil {
			return n, fmt.Errorf("export entries: %w", err)
		}
		if err := cw.Write(entryRecord(e, defs, s.loc)); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

func entryRecord(e Entry, defs []SectionDefinition, loc *time.Location) []string {
	var score string
	if e.Score != nil {
		score = FormatValue(*e.Score)
	}
	var submitted string
	if e.SubmittedAt != nil {
		submitted = e.SubmittedAt.In(loc).Format(time.RFC3339)
	}
	rec := []string{
		e.ID.String(), e.Email, e.Name, e.TeamName, string(e.Status), score, e.AdminComment,
		e.CreatedAt.In(loc).Format(time.RFC3339), submitted,
	}
	for _, def := range defs {
		rec = append(rec, FormatValue(e.Sections[def.Info.Key]))
	}
	return rec
}

// ExportSection writes the stored data of one section for every entry, in
// registry column order. Entries that never saved the section get empty cells.
func (s *Service) ExportSection(ctx context.Context, key string, w io.Writer) (int, error) {
	def, ok := Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidExportKey, key)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT e.id, u.email, e.team_name, s.data, COALESCE(s.completed, false), s.updated_at
		FROM entries e
		JOIN users u ON u.id = e.user_id
		LEFT JOIN %s s ON s.entry_id = e.id
		ORDER BY e.created_at, e.id`, def.Info.Table))
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", key, err)
	}
	defer rows.Close()

	cw := csvtemplate.NewWriter(w)
	header := append([]string{"entry_id", "email", "team_name"}, def.Info.Columns...)
	header = append(header, "completed", "updated_at")
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	n := 0
	for rows.Next() {
		var (
			id        uuid.UUID
			email     string
			team      string
			raw       []byte
			completed bool
			updated   *time.Time
		)
		if err := rows.Scan(&id, &email, &team, &raw, &completed, &updated); err != nil {
			return n, fmt.Errorf("export %s: %w", key, err)
		}
		data := map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &data); err != nil {
				return n, fmt.Errorf("decode %s for %s: %w", key, id, err)
			}
		}

		rec := []string{id.String(), email, team}
		for _, col := range def.Info.Columns {
			rec = append(rec, FormatValue(data[col]))
		}
		var ts string
		if updated != nil {
			ts = updated.In(s.loc).Format(time.RFC3339)
		}
		rec = append(rec, FormatValue(completed), ts)

		if err := cw.Write(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}
