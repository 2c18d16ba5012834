// Package storage provides a key-addressed object store for uploaded files.
//
// Objects live under a single root directory. Keys are slash-separated
// relative paths such as "entries/<entry>/music/<uuid>_song.mp3"; anything
// that could escape the root is rejected before touching the filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrInvalidKey = errors.New("invalid storage key")
	ErrNotFound   = errors.New("object not found")
)

// Object describes a stored file.
type Object struct {
	Key  string
	Size int64
}

// Store reads and writes objects on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New returns a store rooted at dir on the OS filesystem.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewWithFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewWithFs wraps an existing filesystem, typically afero.NewMemMapFs in tests.
func NewWithFs(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// ValidateKey rejects empty, absolute and traversing keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// Put writes r to key, replacing any existing object, and returns the bytes written.
// A failed write removes the partial object.
func (s *Store) Put(key string, r io.Reader) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create object: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(key)
		return 0, fmt.Errorf("write object %s: %w", key, err)
	}
	return n, nil
}

// Open returns a reader for key along with its size. The caller closes it.
func (s *Store) Open(key string) (io.ReadCloser, Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, Object{}, err
	}
	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Object{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, Object{}, fmt.Errorf("open object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Object{}, fmt.Errorf("stat object: %w", err)
	}
	return f, Object{Key: key, Size: info.Size()}, nil
}

// Delete removes key. Deleting a missing object is not an error.
func (s *Store) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// DeletePrefix removes every object under prefix.
func (s *Store) DeletePrefix(prefix string) error {
	if err := ValidateKey(prefix); err != nil {
		return err
	}
	if err := s.fs.RemoveAll(prefix); err != nil {
		return fmt.Errorf("delete prefix: %w", err)
	}
	return nil
}

// Exists reports whether key holds an object.
func (s *Store) Exists(key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, key)
}
