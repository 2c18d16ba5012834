// Package filecheck validates uploaded files by declared MIME type, size and
// leading byte signature, and sanitizes client-supplied file names before
// they are used in storage keys.
package filecheck

import (
	"bytes"
	"fmt"
	"strings"
)

// Category groups the file kinds an upload slot accepts.
type Category string

const (
	Music    Category = "music"
	Video    Category = "video"
	Photo    Category = "photo"
	Document Category = "document"
)

// HeadSize is the number of leading bytes callers should pass to Validate.
const HeadSize = 16

// Reason explains why a file was rejected.
type Reason string

const (
	ReasonUnsupportedType   Reason = "unsupported-type"
	ReasonTooLarge          Reason = "too-large"
	ReasonEmpty             Reason = "empty"
	ReasonSignatureMismatch Reason = "signature-mismatch"
)

// RejectError is returned when a file fails validation.
type RejectError struct {
	Reason   Reason
	Category Category
	MIME     string
	Size     int64
	Limit    int64
}

func (e *RejectError) Error() string {
	switch e.Reason {
	case ReasonTooLarge:
		return fmt.Sprintf("file too large: %d bytes exceeds %d byte limit for %s", e.Size, e.Limit, e.Category)
	case ReasonEmpty:
		return "empty file"
	case ReasonSignatureMismatch:
		return fmt.Sprintf("file signature mismatch: content is not %s", e.MIME)
	default:
		return fmt.Sprintf("unsupported file type %q for %s", e.MIME, e.Category)
	}
}

// segment is a byte sequence expected at a fixed offset.
type segment struct {
	offset int
	bytes  []byte
}

// signature matches when every segment matches.
type signature []segment

func sig(parts ...segment) signature { return parts }

func at(offset int, b ...byte) segment { return segment{offset: offset, bytes: b} }

func atStr(offset int, s string) segment { return segment{offset: offset, bytes: []byte(s)} }

// signatures maps MIME type to accepted signatures; any one may match.
var signatures = map[string][]signature{
	"image/jpeg": {sig(at(0, 0xFF, 0xD8, 0xFF))},
	"image/png":  {sig(at(0, 0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A))},
	"image/webp": {sig(atStr(0, "RIFF"), atStr(8, "WEBP"))},
	"image/gif":  {sig(atStr(0, "GIF87a")), sig(atStr(0, "GIF89a"))},

	"audio/mpeg": {
		sig(atStr(0, "ID3")),
		sig(at(0, 0xFF, 0xFB)),
		sig(at(0, 0xFF, 0xF3)),
		sig(at(0, 0xFF, 0xF2)),
	},
	"audio/wav":   {sig(atStr(0, "RIFF"), atStr(8, "WAVE"))},
	"audio/x-wav": {sig(atStr(0, "RIFF"), atStr(8, "WAVE"))},
	"audio/mp4":   {sig(atStr(4, "ftyp"))},
	"audio/x-m4a": {sig(atStr(4, "ftyp"))},
	"audio/aac":   {sig(at(0, 0xFF, 0xF1)), sig(at(0, 0xFF, 0xF9))},

	"video/mp4":       {sig(atStr(4, "ftyp"))},
	"video/quicktime": {sig(atStr(4, "ftyp")), sig(atStr(4, "moov")), sig(atStr(4, "wide"))},
	"video/webm":      {sig(at(0, 0x1A, 0x45, 0xDF, 0xA3))},

	"application/pdf": {sig(atStr(0, "%PDF-"))},
}

// allowed lists the MIME types each category accepts.
var allowed = map[Category][]string{
	Music:    {"audio/mpeg", "audio/wav", "audio/x-wav", "audio/mp4", "audio/x-m4a", "audio/aac"},
	Video:    {"video/mp4", "video/quicktime", "video/webm"},
	Photo:    {"image/jpeg", "image/png", "image/webp", "image/gif"},
	Document: {"application/pdf"},
}

// Categories returns every known category.
func Categories() []Category {
	return []Category{Music, Video, Photo, Document}
}

// ParseCategory resolves a category name.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := allowed[c]
	return c, ok
}

// AllowedTypes returns the MIME allow-list for a category.
func AllowedTypes(c Category) []string {
	return append([]string(nil), allowed[c]...)
}

// Limits holds the size ceiling in bytes per category.
type Limits map[Category]int64

// Checker validates files against per-category limits.
type Checker struct {
	limits Limits
}

// New creates a Checker. A category without a limit rejects every file as too large.
func New(limits Limits) *Checker {
	return &Checker{limits: limits}
}

// Limit returns the size ceiling for a category.
func (c *Checker) Limit(cat Category) int64 {
	return c.limits[cat]
}

// Validate checks the declared MIME type against the category allow-list,
// the size against the ceiling and the head bytes against the signature table.
// Checks run in that order and the first failure is returned.
func (c *Checker) Validate(cat Category, mime string, head []byte, size int64) error {
	mime = normalizeMIME(mime)

	if !isAllowed(cat, mime) {
		return &RejectError{Reason: ReasonUnsupportedType, Category: cat, MIME: mime, Size: size}
	}
	if size <= 0 || len(head) == 0 {
		return &RejectError{Reason: ReasonEmpty, Category: cat, MIME: mime}
	}
	limit := c.limits[cat]
	if size > limit {
		return &RejectError{Reason: ReasonTooLarge, Category: cat, MIME: mime, Size: size, Limit: limit}
	}
	if !MatchSignature(mime, head) {
		return &RejectError{Reason: ReasonSignatureMismatch, Category: cat, MIME: mime, Size: size}
	}
	return nil
}

// MatchSignature reports whether head begins with any signature registered
// for mime.
func MatchSignature(mime string, head []byte) bool {
	for _, s := range signatures[normalizeMIME(mime)] {
		if s.matches(head) {
			return true
		}
	}
	return false
}

func (s signature) matches(head []byte) bool {
	for _, seg := range s {
		end := seg.offset + len(seg.bytes)
		if end > len(head) || !bytes.Equal(head[seg.offset:end], seg.bytes) {
			return false
		}
	}
	return len(s) > 0
}

func isAllowed(cat Category, mime string) bool {
	for _, m := range allowed[cat] {
		if m == mime {
			return true
		}
	}
	return false
}

// normalizeMIME lowercases and drops parameters such as "; charset=binary".
func normalizeMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
