package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/DanceEntry/internal/filecheck"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// Setting key prefixes. Only keys under these prefixes may be stored.
const (
	PrefixDeadline   = "deadline."
	PrefixBackground = "background."
	PrefixTitle      = "title."
)

// MaxSettingLength bounds a single setting value.
const MaxSettingLength = 2000

// PublicSettings is the subset of settings shown to anonymous visitors.
type PublicSettings struct {
	Titles      map[string]string        `json:"titles"`
	Backgrounds map[string]string        `json:"backgrounds"`
	Deadlines   map[string]*DeadlineInfo `json:"deadlines"`
}

func (s *Service) setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// Settings returns every stored setting.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// PublicSettings returns titles, background image URLs and the deadline of
// every section that has one.
func (s *Service) PublicSettings(ctx context.Context) (PublicSettings, error) {
	all, err := s.Settings(ctx)
	if err != nil {
		return PublicSettings{}, err
	}
	return buildPublicSettings(all, s.now(), s.loc), nil
}

// UpdateSettings validates and stores changes. An empty value deletes the key.
func (s *Service) UpdateSettings(ctx context.Context, actor Actor, changes map[string]string) (map[string]string, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	if err := ValidateSettings(changes); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, k := range keys {
			if err := putSetting(ctx, tx, k, strings.TrimSpace(changes[k])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, s.pool, actor, ActionSettingsUpdate, nil, map[string]any{"keys": keys})
	logging.FromContext(ctx).Info("settings updated", "keys", keys)
	return s.Settings(ctx)
}

func putSetting(ctx context.Context, q DBTX, key, value string) error {
	var err error
	if value == "" {
		_, err = q.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	} else {
		_, err = q.Exec(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	}
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// ValidateSettings checks keys and values of a settings change set.
func ValidateSettings(changes map[string]string) error {
	var errs ValidationErrors
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := strings.TrimSpace(changes[k])
		switch {
		case strings.HasPrefix(k, PrefixDeadline):
			if _, ok := Get(strings.TrimPrefix(k, PrefixDeadline)); !ok {
				errs = append(errs, ValidationError{Field: k, Message: "unknown section"})
				continue
			}
			if v != "" {
				if _, err := ParseDeadline(v); err != nil {
					errs = append(errs, ValidationError{Field: k, Value: v, Message: "must be an RFC 3339 timestamp"})
				}
			}
		case strings.HasPrefix(k, PrefixBackground), strings.HasPrefix(k, PrefixTitle):
			name := k[strings.IndexByte(k, '.')+1:]
			if !identifier.MatchString(name) {
				errs = append(errs, ValidationError{Field: k, Message: "invalid page name"})
				continue
			}
			if len(v) > MaxSettingLength {
				errs = append(errs, ValidationError{Field: k, Message: fmt.Sprintf("must be at most %d characters", MaxSettingLength)})
				continue
			}
			if strings.HasPrefix(k, PrefixBackground) && v != "" && !strings.HasPrefix(v, backgroundPrefix(name)) {
				errs = append(errs, ValidationError{Field: k, Value: v, Message: "upload backgrounds through the background endpoint"})
			}
		default:
			errs = append(errs, ValidationError{Field: k, Message: "setting key not allowed"})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSetting, errs)
	}
	return nil
}

func buildPublicSettings(all map[string]string, now time.Time, loc *time.Location) PublicSettings {
	ps := PublicSettings{
		Titles:      map[string]string{},
		Backgrounds: map[string]string{},
		Deadlines:   map[string]*DeadlineInfo{},
	}
	for k, v := range all {
		switch {
		case strings.HasPrefix(k, PrefixTitle):
			ps.Titles[strings.TrimPrefix(k, PrefixTitle)] = v
		case strings.HasPrefix(k, PrefixBackground):
			ps.Backgrounds[strings.TrimPrefix(k, PrefixBackground)] = BackgroundURL(strings.TrimPrefix(k, PrefixBackground))
		case strings.HasPrefix(k, PrefixDeadline):
			if t, err := ParseDeadline(v); err == nil {
				ps.Deadlines[strings.TrimPrefix(k, PrefixDeadline)] = NewDeadlineInfo(now, t, loc)
			}
		}
	}
	return ps
}

// BackgroundURL is the public path serving a page's background image.
func BackgroundURL(page string) string {
	return "/api/backgrounds/" + page
}

func backgroundPrefix(page string) string {
	return "backgrounds/" + page + "/"
}

// SetBackground stores a validated photo as the background of page and
// records its object key in settings. The previous image is removed.
func (s *Service) SetBackground(ctx context.Context, actor Actor, page string, up FileUpload) error {
	if !actor.Admin {
		return ErrForbidden
	}
	if !identifier.MatchString(page) {
		return fmt.Errorf("%w: invalid page name %q", ErrInvalidSetting, page)
	}

	head := make([]byte, filecheck.HeadSize)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if err := s.checker.Validate(filecheck.Photo, up.ContentType, head, up.Size); err != nil {
		return err
	}

	key := fmt.Sprintf("%s%s_%s", backgroundPrefix(page), uuid.New(), filecheck.SanitizeFilename(up.Name, s.maxFilename))
	limit := s.checker.Limit(filecheck.Photo)
	written, err := s.store.Put(key, io.LimitReader(io.MultiReader(bytes.NewReader(head), up.Body), limit+1))
	if err != nil {
		return fmt.Errorf("store background: %w", err)
	}
	if written > limit {
		s.removeObject(ctx, key)
		return &filecheck.RejectError{Reason: filecheck.ReasonTooLarge, Category: filecheck.Photo, MIME: up.ContentType, Size: written, Limit: limit}
	}

	settingKey := PrefixBackground + page
	previous, err := s.setting(ctx, settingKey)
	if err != nil {
		s.removeObject(ctx, key)
		return err
	}
	if err := putSetting(ctx, s.pool, settingKey, key); err != nil {
		s.removeObject(ctx, key)
		return err
	}
	if previous != "" && previous != key {
		s.removeObject(ctx, previous)
	}

	s.record(ctx, s.pool, actor, ActionBackgroundUpdate, nil, map[string]any{"page": page, "size_bytes": written})
	return nil
}

// OpenBackground returns the background image of page.
func (s *Service) OpenBackground(ctx context.Context, page string) (io.ReadCloser, string, error) {
	if !identifier.MatchString(page) {
		return nil, "", ErrFileNotFound
	}
	key, err := s.setting(ctx, PrefixBackground+page)
	if err != nil {
		return nil, "", err
	}
	if key == "" || !strings.HasPrefix(key, backgroundPrefix(page)) {
		return nil, "", ErrFileNotFound
	}
	rc, _, err := s.store.Open(key)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return rc, key, nil
}
