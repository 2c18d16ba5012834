package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/DanceEntry/internal/logging"
	"github.com/JonMunkholm/DanceEntry/internal/mail"
)

// MaxRecipients bounds one bulk notification.
const MaxRecipients = 1000

// Email log statuses.
const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

// NotificationTemplate is a stored template.
type NotificationTemplate struct {
	mail.Template
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipientResult is the outcome of one send.
type RecipientResult struct {
	EntryID   uuid.UUID `json:"entry_id"`
	Recipient string    `json:"recipient,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// SendResult summarizes a bulk notification.
type SendResult struct {
	Template string            `json:"template"`
	Sent     int               `json:"sent"`
	Failed   int               `json:"failed"`
	Results  []RecipientResult `json:"results"`
}

// EmailLogFilter narrows ListEmailLogs.
type EmailLogFilter struct {
	EntryID *uuid.UUID
	Status  string
	Limit   int
	Offset  int
}

// SeedTemplates inserts the built-in templates that are not stored yet.
// Edited templates are left alone.
func (s *Service) SeedTemplates(ctx context.Context) (int, error) {
	defaults, err := mail.DefaultTemplates()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, t := range defaults {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO notification_templates (key, description, subject, body)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (key) DO NOTHING`, t.Key, t.Description, t.Subject, t.Body)
		if err != nil {
			return added, fmt.Errorf("seed template %s: %w", t.Key, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func scanTemplate(row pgx.Row) (NotificationTemplate, error) {
	var t NotificationTemplate
	err := row.Scan(&t.Key, &t.Description, &t.Subject, &t.Body, &t.UpdatedAt)
	return t, err
}

// ListTemplates returns every stored notification template.
func (s *Service) ListTemplates(ctx context.Context) ([]NotificationTemplate, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, description, subject, body, updated_at FROM notification_templates ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (NotificationTemplate, error) {
		return scanTemplate(row)
	})
}

// GetTemplate returns one notification template.
func (s *Service) GetTemplate(ctx context.Context, key string) (NotificationTemplate, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx,
		`SELECT key, description, subject, body, updated_at FROM notification_templates WHERE key = $1`, key))
	if err != nil {
		return NotificationTemplate{}, notFound(err, ErrTemplateNotFound)
	}
	return t, nil
}

// UpdateTemplate replaces the subject and body of a template.
func (s *Service) UpdateTemplate(ctx context.Context, actor Actor, key, subject, body string) (NotificationTemplate, error) {
	if !actor.Admin {
		return NotificationTemplate{}, ErrForbidden
	}
	subject = strings.TrimSpace(subject)
	if subject == "" || strings.TrimSpace(body) == "" {
		return NotificationTemplate{}, fmt.Errorf("%w: subject and body are required", ErrInvalidTemplate)
	}
	if strings.ContainsAny(subject, "\r\n") {
		return NotificationTemplate{}, fmt.Errorf("%w: subject must be a single line", ErrInvalidTemplate)
	}

	t, err := scanTemplate(s.pool.QueryRow(ctx, `
		UPDATE notification_templates SET subject = $2, body = $3, updated_at = now()
		WHERE key = $1
		RETURNING key, description, subject, body, updated_at`, key, subject, body))
	if err != nil {
		return NotificationTemplate{}, notFound(err, ErrTemplateNotFound)
	}

	s.record(ctx, s.pool, actor, ActionTemplateUpdate, nil, map[string]any{"template": key})
	return t, nil
}

// templateVars are the substitution values for one entry.
func (s *Service) templateVars(e Entry) mail.Vars {
	incomplete := MissingSections(e)
	return mail.Vars{
		"name":                e.Name,
		"team_name":           e.TeamName,
		"email":               e.Email,
		"entry_id":            e.ID.String(),
		"status":              string(e.Status),
		"app_url":             strings.TrimRight(s.appURL, "/"),
		"incomplete_sections": strings.Join(incomplete, ", "),
	}
}

// SendNotification renders templateKey for every listed entry and sends it
// with bounded concurrency. Every attempt is logged to email_logs and the
// per-recipient outcome returned; a failed send never stops the others.
func (s *Service) SendNotification(ctx context.Context, actor Actor, templateKey string, entryIDs []uuid.UUID) (SendResult, error) {
	if !actor.Admin {
		return SendResult{}, ErrForbidden
	}
	ids := dedupeIDs(entryIDs)
	if len(ids) == 0 {
		return SendResult{}, ErrNoRecipients
	}
	if len(ids) > MaxRecipients {
		return SendResult{}, fmt.Errorf("%w: at most %d recipients", ErrNoRecipients, MaxRecipients)
	}
	if !s.mailEnabled {
		return SendResult{}, ErrMailDisabled
	}

	tmpl, err := s.GetTemplate(ctx, templateKey)
	if err != nil {
		return SendResult{}, err
	}

	results := make([]RecipientResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.mailConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.sendOne(gctx, tmpl.Template, id)
			return nil
		})
	}
	_ = g.Wait()

	out := SendResult{Template: templateKey, Results: results}
	for _, r := range results {
		if r.Status == EmailSent {
			out.Sent++
		} else {
			out.Failed++
		}
	}

	s.record(ctx, s.pool, actor, ActionNotificationSend, nil, map[string]any{
		"template": templateKey, "sent": out.Sent, "failed": out.Failed,
	})
	logging.FromContext(ctx).Info("notification sent",
		"template", templateKey, "sent", out.Sent, "failed", out.Failed)
	return out, nil
}

// sendOne renders and sends to the owner of one entry and logs the attempt.
func (s *Service) sendOne(ctx context.Context, tmpl mail.Template, entryID uuid.UUID) RecipientResult {
	res := RecipientResult{EntryID: entryID, Status: EmailFailed}

	entry, err := s.loadEntry(ctx, s.pool, "e.id = $1", entryID)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Recipient = entry.Email

	rendered, err := s.render.Render(ctx, tmpl, s.templateVars(entry))
	if err == nil {
		err = s.mailer.Send(ctx, mail.Message{To: entry.Email, Subject: rendered.Subject, HTML: rendered.HTML})
	}
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Status = EmailSent
	}

	s.logEmail(ctx, tmpl.Key, &entry.ID, entry.Email, rendered.Subject, res.Status, res.Error)
	return res
}

// notifyBestEffort sends an automatic notification for entry. Failures are
// logged to email_logs and never reach the caller.
func (s *Service) notifyBestEffort(ctx context.Context, templateKey string, entry Entry) {
	if !s.mailEnabled {
		return
	}
	tmpl, err := s.GetTemplate(ctx, templateKey)
	if err != nil {
		logging.FromContext(ctx).Warn("notification template unavailable", "template", templateKey, "error", err)
		return
	}
	res := s.sendOne(ctx, tmpl.Template, entry.ID)
	if res.Status != EmailSent {
		logging.FromContext(ctx).Warn("notification failed",
			"template", templateKey, "entry_id", entry.ID, "error", res.Error)
	}
}

func (s *Service) logEmail(ctx context.Context, templateKey string, entryID *uuid.UUID, recipient, subject, status, errMsg string) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_logs (template_key, entry_id, recipient, subject, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		templateKey, entryID, recipient, subject, status, errMsg)
	if err != nil {
		logging.FromContext(ctx).Error("email log write failed", "template", templateKey, "error", err)
	}
}

// ListEmailLogs returns email attempts newest first.
func (s *Service) ListEmailLogs(ctx context.Context, filter EmailLogFilter) ([]EmailLog, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = DefaultAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, template_key, entry_id, recipient, subject, status, error, created_at
		FROM email_logs
		WHERE ($1::uuid IS NULL OR entry_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		filter.EntryID, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[EmailLog])
}

// purgeEmailLogs deletes email log rows created before cutoff.
func (s *Service) purgeEmailLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM email_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
