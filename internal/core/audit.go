package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionEntryDelete      AuditAction = "entry_delete"
	ActionEntryReview      AuditAction = "entry_review"
	ActionSectionOverride  AuditAction = "section_admin_edit"
	ActionSettingsUpdate   AuditAction = "settings_update"
	ActionBackgroundUpdate AuditAction = "background_update"
	ActionImport           AuditAction = "csv_import"
	ActionTemplateUpdate   AuditAction = "template_update"
	ActionNotificationSend AuditAction = "notification_send"
)

// DefaultAuditLimit is the page size for ListAuditLog.
const DefaultAuditLimit = 100

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	EntryID *uuid.UUID
	Action  AuditAction
	Limit   int
	Offset  int
}

// record writes an audit row. Failures are logged and never fail the
// operation being audited.
func (s *Service) record(ctx context.Context, q DBTX, actor Actor, action AuditAction, entryID *uuid.UUID, detail map[string]any) {
	if detail == nil {
		detail = map[string]any{}
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		payload = []byte("{}")
	}

	var actorID *uuid.UUID
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		actorID = &id
	}

	meta := RequestMetaFrom(ctx)
	_, err = q.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action, entry_id, ip_address, user_agent, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		actorID, string(action), entryID,
		meta.IP, meta.UserAgent, payload,
	)
	if err != nil {
		logging.FromContext(ctx).Error("audit log write failed", "action", action, "error", err)
	}
}

// ListAuditLog returns audit rows newest first.
func (s *Service) ListAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = DefaultAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, actor_id, action, entry_id, ip_address, user_agent, detail, created_at
		FROM audit_log
		WHERE ($1::uuid IS NULL OR entry_id = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		filter.EntryID, string(filter.Action), filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditEntry, error) {
		var e AuditEntry
		var detail []byte
		if err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntryID, &e.IPAddress, &e.UserAgent, &detail, &e.CreatedAt); err != nil {
			return e, err
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		return e, nil
	})
}

// purgeAuditLog deletes audit rows created before cutoff.
func (s *Service) purgeAuditLog(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
