// Package csvtemplate builds spreadsheet-friendly CSV templates and parses
// quoted CSV text back into records.
//
// Output always starts with a UTF-8 byte-order mark and uses CRLF line
// endings so Excel opens non-ASCII names correctly.
package csvtemplate

import (
	"io"
	"strings"
)

// BOM is the UTF-8 byte-order mark written ahead of every generated file.
const BOM = "\uFEFF"

// EscapeField quotes s when it contains a comma, quote, CR or LF.
// Embedded quotes are doubled.
func EscapeField(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// JoinRow escapes and comma-joins a single record without a line ending.
// A record holding one empty field is written as "" so it is not read back
// as a blank line.
func JoinRow(fields []string) string {
	if len(fields) == 1 && fields[0] == "" {
		return `""`
	}
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeField(f)
	}
	return strings.Join(escaped, ",")
}

// Generate returns a template containing the BOM, a header line and one
// sample row. A nil sample produces a header-only template.
func Generate(columns, sample []string) string {
	var b strings.Builder
	b.WriteString(BOM)
	b.WriteString(JoinRow(columns))
	b.WriteString("\r\n")
	if sample != nil {
		b.WriteString(JoinRow(sample))
		b.WriteString("\r\n")
	}
	return b.String()
}

// Writer streams BOM-prefixed CSV records with CRLF line endings.
type Writer struct {
	w       io.Writer
	started bool
	err     error
}

// NewWriter returns a Writer that emits the BOM before the first record.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write emits one record. After the first failure every call is a no-op
// returning the same error.
func (cw *Writer) Write(fields []string) error {
	if cw.err != nil {
		return cw.err
	}
	if !cw.started {
		cw.started = true
		if _, cw.err = io.WriteString(cw.w, BOM); cw.err != nil {
			return cw.err
		}
	}
	_, cw.err = io.WriteString(cw.w, JoinRow(fields)+"\r\n")
	return cw.err
}

// Err reports the first write error, if any.
func (cw *Writer) Err() error {
	return cw.err
}

// ParseLine splits a single CSV line into fields.
//
// The scan is one pass with an in-quotes flag: a doubled quote inside a
// quoted field yields one literal quote and a comma outside quotes ends the
// field. A trailing CR or LF is ignored.
func ParseLine(line string) []string {
	line = strings.TrimRight(line, "\r\n")
	records := scan(line, false)
	if len(records) == 0 {
		return []string{""}
	}
	return records[0]
}

// Parse splits a whole document into records. The BOM is stripped, records
// break on CR, LF or CRLF outside quotes, and blank lines are skipped.
// Quoted fields may span lines.
func Parse(text string) [][]string {
	return scan(strings.TrimPrefix(text, BOM), true)
}

func scan(text string, multiline bool) [][]string {
	var (
		records  [][]string
		record   []string
		field    strings.Builder
		inQuotes bool
		touched  bool
	)

	endField := func() {
		record = append(record, field.String())
		field.Reset()
	}
	endRecord := func() {
		endField()
		if touched {
			records = append(records, record)
		}
		record = nil
		touched = false
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			field.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inQuotes = true
			touched = true
		case ',':
			endField()
			touched = true
		case '\r', '\n':
			if !multiline {
				field.WriteByte(c)
				touched = true
				continue
			}
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRecord()
		default:
			field.WriteByte(c)
			touched = true
		}
	}

	if touched || field.Len() > 0 {
		endRecord()
	}
	return records
}
