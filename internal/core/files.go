package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/DanceEntry/internal/filecheck"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// MaxPhotos is the number of photos one entry may hold.
const MaxPhotos = 5

// singleSlot file types keep only their latest upload.
var singleSlot = map[filecheck.Category]bool{
	filecheck.Music: true,
	filecheck.Video: true,
}

// FileUpload describes an incoming file.
type FileUpload struct {
	Type        string
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

const fileColumns = `id, entry_id, file_type, path, original_name, content_type, size_bytes, created_at`

func scanFile(row pgx.Row) (EntryFile, error) {
	var f EntryFile
	err := row.Scan(&f.ID, &f.EntryID, &f.FileType, &f.Path, &f.OriginalName, &f.ContentType, &f.SizeBytes, &f.CreatedAt)
	return f, err
}

// UploadFile validates and stores a file for an entry.
//
// The object is written before its row. If the row cannot be committed the
// object is deleted again. Music and video replace the previous upload;
// the replaced objects are removed after commit.
func (s *Service) UploadFile(ctx context.Context, actor Actor, entryID uuid.UUID, up FileUpload) (EntryFile, error) {
	cat, ok := filecheck.ParseCategory(up.Type)
	if !ok {
		return EntryFile{}, fmt.Errorf("%w: %q", ErrInvalidFileType, up.Type)
	}
	if _, _, err := s.authorize(ctx, actor, entryID); err != nil {
		return EntryFile{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return EntryFile{}, err
	}
	defer s.limiter.Release()

	head := make([]byte, filecheck.HeadSize)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return EntryFile{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if err := s.checker.Validate(cat, up.ContentType, head, up.Size); err != nil {
		return EntryFile{}, err
	}

	name := filecheck.SanitizeFilename(up.Name, s.maxFilename)
	key := fmt.Sprintf("%s/%s/%s_%s", entryPrefix(entryID), cat, uuid.New(), name)

	// The declared size is untrusted; stop one byte past the ceiling.
	limit := s.checker.Limit(cat)
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), up.Body), limit+1)
	written, err := s.store.Put(key, body)
	if err != nil {
		return EntryFile{}, fmt.Errorf("store upload: %w", err)
	}
	if written > limit {
		s.removeObject(ctx, key)
		return EntryFile{}, &filecheck.RejectError{Reason: filecheck.ReasonTooLarge, Category: cat, MIME: up.ContentType, Size: written, Limit: limit}
	}
	if written == 0 {
		s.removeObject(ctx, key)
		return EntryFile{}, &filecheck.RejectError{Reason: filecheck.ReasonEmpty, Category: cat, MIME: up.ContentType}
	}

	var file EntryFile
	var replaced []string
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if singleSlot[cat] {
			rows, err := tx.Query(ctx, `DELETE FROM entry_files WHERE entry_id = $1 AND file_type = $2 RETURNING path`, entryID, string(cat))
			if err != nil {
				return fmt.Errorf("replace %s: %w", cat, err)
			}
			replaced, err = pgx.CollectRows(rows, pgx.RowTo[string])
			if err != nil {
				return fmt.Errorf("replace %s: %w", cat, err)
			}
		} else if cat == filecheck.Photo {
			var count int
			if err := tx.QueryRow(ctx, `SELECT count(*) FROM entry_files WHERE entry_id = $1 AND file_type = $2`, entryID, string(cat)).Scan(&count); err != nil {
				return fmt.Errorf("count photos: %w", err)
			}
			if count >= MaxPhotos {
				return fmt.Errorf("%w: at most %d photos", ErrTooManyFiles, MaxPhotos)
			}
		}

		var err error
		file, err = scanFile(tx.QueryRow(ctx, `
			INSERT INTO entry_files (entry_id, file_type, path, original_name, content_type, size_bytes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+fileColumns,
			entryID, string(cat), key, name, up.ContentType, written))
		if err != nil {
			return fmt.Errorf("record upload: %w", err)
		}
		return nil
	})
	if err != nil {
		s.removeObject(ctx, key)
		return EntryFile{}, err
	}

	for _, old := range replaced {
		s.removeObject(ctx, old)
	}
	logging.FromContext(ctx).Info("file uploaded",
		"entry_id", entryID, "file_type", cat, "size_bytes", written, "replaced", len(replaced))
	return file, nil
}

// ListFiles returns the files of an entry, oldest first.
func (s *Service) ListFiles(ctx context.Context, actor Actor, entryID uuid.UUID) ([]EntryFile, error) {
	if _, _, err := s.authorize(ctx, actor, entryID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+fileColumns+` FROM entry_files WHERE entry_id = $1 ORDER BY created_at, id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EntryFile, error) {
		return scanFile(row)
	})
}

// file loads a file row and checks that actor may access its entry.
func (s *Service) file(ctx context.Context, actor Actor, fileID uuid.UUID) (EntryFile, error) {
	f, err := scanFile(s.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM entry_files WHERE id = $1`, fileID))
	if err != nil {
		return EntryFile{}, notFound(err, ErrFileNotFound)
	}
	if _, _, err := s.authorize(ctx, actor, f.EntryID); err != nil {
		return EntryFile{}, err
	}
	return f, nil
}

// OpenFile returns the file row and its contents. The caller closes the reader.
func (s *Service) OpenFile(ctx context.Context, actor Actor, fileID uuid.UUID) (EntryFile, io.ReadCloser, error) {
	f, err := s.file(ctx, actor, fileID)
	if err != nil {
		return EntryFile{}, nil, err
	}
	rc, _, err := s.store.Open(f.Path)
	if err != nil {
		return EntryFile{}, nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return f, rc, nil
}

// DeleteFile removes a file row and its object.
func (s *Service) DeleteFile(ctx context.Context, actor Actor, fileID uuid.UUID) error {
	f, err := s.file(ctx, actor, fileID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM entry_files WHERE id = $1`, fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	s.removeObject(ctx, f.Path)
	logging.FromContext(ctx).Info("file deleted", "entry_id", f.EntryID, "file_id", fileID)
	return nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(key); err != nil {
		logging.FromContext(ctx).Error("delete stored object", "key", key, "error", err)
	}
}
