package core

// import_text.go turns raw upload bytes into text the CSV parser can use.
//
// Spreadsheet exports arrive in a few shapes:
//   - UTF-8 with or without a BOM (the parser strips the BOM)
//   - Shift_JIS from older Excel versions
//   - UTF-8 with stray invalid bytes, which become U+FFFD
//
// The result is NFC-normalized so that visually identical names compare equal.

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/unicode/norm"
)

// decodeImportText converts raw file bytes to normalized UTF-8 text.
func decodeImportText(raw []byte) string {
	if utf8.Valid(raw) {
		return norm.NFC.String(string(raw))
	}
	if decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
		return norm.NFC.String(string(decoded))
	}
	return norm.NFC.String(strings.ToValidUTF8(string(raw), "\uFFFD"))
}

// sizeLimitReader fails once more than limit bytes have been read.
type sizeLimitReader struct {
	r     io.Reader
	read  int64
	limit int64
}

// newSizeLimitReader wraps r. A non-positive limit disables the check.
func newSizeLimitReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		return r
	}
	return &sizeLimitReader{r: r, limit: limit}
}

func (s *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.read += int64(n)
	if s.read > s.limit {
		return n, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidImport, s.limit)
	}
	return n, err
}
