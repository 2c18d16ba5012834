package core

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// MaxScore is the largest score the entries.score column can hold.
const MaxScore = 9999.99

// Review is an admin's decision on an entry. Nil fields are left unchanged.
type Review struct {
	Status  EntryStatus
	Score   *float64
	Comment *string
}

// IncompleteError lists the sections blocking submission.
type IncompleteError struct {
	Sections []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: complete %s first", ErrIncomplete, strings.Join(e.Sections, ", "))
}

// Is makes errors.Is(err, ErrIncomplete) hold.
func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}

// ReviewEntry sets the status, score and comment of an entry. Any valid
// status may be set in any order.
func (s *Service) ReviewEntry(ctx context.Context, actor Actor, id uuid.UUID, r Review) (Entry, error) {
	if !actor.Admin {
		return Entry{}, ErrForbidden
	}
	if !r.Status.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	if r.Score != nil && (math.IsNaN(*r.Score) || *r.Score < 0 || *r.Score > MaxScore) {
		return Entry{}, ValidationErrors{{
			Field:   "score",
			Value:   FormatValue(*r.Score),
			Message: fmt.Sprintf("must be between 0 and %s", FormatValue(MaxScore)),
		}}
	}

	var previous string
	err := s.pool.QueryRow(ctx, `
		WITH prev AS (SELECT status FROM entries WHERE id = $1 FOR UPDATE)
		UPDATE entries SET
			status = $2,
			score = COALESCE($3, score),
			admin_comment = COALESCE($4, admin_comment),
			submitted_at = CASE WHEN $2 <> 'draft' AND submitted_at IS NULL THEN now() ELSE submitted_at END,
			updated_at = now()
		FROM prev
		WHERE id = $1
		RETURNING prev.status`,
		id, string(r.Status), r.Score, r.Comment,
	).Scan(&previous)
	if err != nil {
		return Entry{}, notFound(err, ErrEntryNotFound)
	}

	detail := map[string]any{"from": previous, "to": string(r.Status)}
	if r.Score != nil {
		detail["score"] = *r.Score
	}
	if r.Comment != nil {
		detail["comment"] = *r.Comment
	}
	s.record(ctx, s.pool, actor, ActionEntryReview, &id, detail)
	logging.FromContext(ctx).Info("entry reviewed", "entry_id", id, "from", previous, "to", r.Status)

	return s.loadEntry(ctx, s.pool, "e.id = $1", id)
}

// SubmitEntry moves a draft entry to submitted once every section required
// for submission is complete.
func (s *Service) SubmitEntry(ctx context.Context, actor Actor, id uuid.UUID) (Entry, error) {
	entry, err := s.GetEntry(ctx, actor, id)
	if err != nil {
		return Entry{}, err
	}
	if entry.Status != StatusDraft {
		return Entry{}, ErrNotDraft
	}
	if missing := MissingSections(entry); len(missing) > 0 {
		return Entry{}, &IncompleteError{Sections: missing}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE entries SET status = 'submitted', submitted_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return Entry{}, fmt.Errorf("submit entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, ErrNotDraft
	}

	entry, err = s.loadEntry(ctx, s.pool, "e.id = $1", id)
	if err != nil {
		return Entry{}, err
	}
	logging.FromContext(ctx).Info("entry submitted", "entry_id", id)
	s.notifyBestEffort(ctx, "submission_confirmed", entry)
	return entry, nil
}

// MissingSections returns the labels of sections that must be complete
// before e can be submitted, in form order.
func MissingSections(e Entry) []string {
	var missing []string
	for _, def := range All() {
		if def.Info.RequiredForSubmit && !e.Sections[def.Info.Key] {
			missing = append(missing, def.Info.Label)
		}
	}
	return missing
}
