package filecheck

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxFilename is used when SanitizeFilename gets a non-positive max.
const DefaultMaxFilename = 100

const fallbackName = "file"

// SanitizeFilename makes a client-supplied name safe to embed in a storage key.
//
// The name is NFKC-normalized, path separators become underscores, anything
// outside [A-Za-z0-9._-] is dropped, runs of underscores collapse, and
// leading dots are trimmed. Names longer than max are cut while keeping the
// extension. An empty result becomes "file" (plus the extension if any).
func SanitizeFilename(name string, max int) string {
	if max <= 0 {
		max = DefaultMaxFilename
	}

	name = norm.NFKC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			r = '_'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
		default:
			continue
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	base, ext := splitExt(b.String())
	base = strings.Trim(base, "._")
	if base == "" {
		base = fallbackName
	}

	if len(base)+len(ext) > max {
		keep := max - len(ext)
		if keep < 1 {
			ext = ""
			keep = max
		}
		base = strings.TrimRight(base[:keep], "._-")
		if base == "" {
			base = fallbackName[:min(len(fallbackName), keep)]
		}
	}
	return base + ext
}

// splitExt separates a short alphanumeric extension such as ".mp4".
func splitExt(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || len(name)-i < 2 || len(name)-i > 16 {
		return name, ""
	}
	for _, r := range name[i+1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return name, ""
		}
	}
	return name[:i], name[i:]
}
