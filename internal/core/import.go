package core

// import.go bulk-creates entries from a CSV file.
//
// Each data row becomes one user (matched by email) plus one entry with its
// basic information. Rows are independent: a row that fails validation or
// insertion is reported and the rest continue. Each valid row is written in
// its own transaction.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/DanceEntry/internal/csvtemplate"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
)

// MaxImportErrors caps the row errors reported by one import.
const MaxImportErrors = 100

// ImportError is a problem with one CSV row. Line is the 1-based record
// number, counting the header and skipping blank lines.
type ImportError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	TotalRows int           `json:"total_rows"`
	Imported  int           `json:"imported"`
	Failed    int           `json:"failed"`
	Errors    []ImportError `json:"errors"`
	Truncated bool          `json:"truncated"`
}

func (r *ImportResult) addError(e ImportError) {
	if len(r.Errors) >= MaxImportErrors {
		r.Truncated = true
		return
	}
	r.Errors = append(r.Errors, e)
}

// ImportRow is a validated row ready to insert.
type ImportRow struct {
	Line     int
	Email    string
	Name     string
	Data     map[string]any
	Complete bool
}

// ImportPlan is the outcome of parsing an import file.
type ImportPlan struct {
	Rows        []ImportRow
	Total       int
	InvalidRows int
	Invalid     []ImportError
}

// ImportSpecs are the columns of the entries import template: the user's
// email and name followed by the basic information fields.
func ImportSpecs() []FieldSpec {
	specs := []FieldSpec{
		{Name: "email", Label: "Email", Type: FieldText, Required: true, MaxLength: 254},
		{Name: "name", Label: "Name", Type: FieldText, MaxLength: 100},
	}
	if def, ok := Get(BasicSection); ok {
		specs = append(specs, def.FieldSpecs...)
	}
	return specs
}

// ParseImport parses and validates an import file without touching the database.
// A missing header or missing required columns fail the whole file.
func ParseImport(text string) (ImportPlan, error) {
	records := csvtemplate.Parse(text)
	if len(records) == 0 {
		return ImportPlan{}, fmt.Errorf("%w: file is empty", ErrInvalidImport)
	}

	specs := ImportSpecs()
	idx, err := ValidateHeaders(records[0], specs)
	if err != nil {
		return ImportPlan{}, err
	}

	def, _ := Get(BasicSection)
	rv := NewRowValidator(specs, idx)
	basic := NewRowValidator(def.FieldSpecs, idx)

	var plan ImportPlan
	for i, row := range records[1:] {
		line := i + 2
		if blankRow(row) {
			continue
		}
		plan.Total++

		res := rv.ValidateRow(row)
		email := strings.ToLower(idx.Cell(row, "email"))
		if email != "" && !strings.Contains(email, "@") {
			res.Valid = false
			res.Errors = append(res.Errors, ValidationError{Field: "email", Value: email, Message: "must contain @"})
		}
		if !res.Valid {
			plan.InvalidRows++
			for _, e := range res.Errors {
				plan.Invalid = append(plan.Invalid, ImportError{Line: line, Field: e.Field, Message: e.Message})
			}
			continue
		}

		data, complete := basic.RowData(row)
		plan.Rows = append(plan.Rows, ImportRow{
			Line:     line,
			Email:    email,
			Name:     idx.Cell(row, "name"),
			Data:     data,
			Complete: complete,
		})
	}
	return plan, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}

// ImportEntries reads a CSV file from r and creates one entry per valid row.
// limit bounds the file size in bytes; zero means no bound.
func (s *Service) ImportEntries(ctx context.Context, actor Actor, r io.Reader, limit int64) (ImportResult, error) {
	if !actor.Admin {
		return ImportResult{}, ErrForbidden
	}

	raw, err := io.ReadAll(newSizeLimitReader(r, limit))
	if errors.Is(err, ErrInvalidImport) {
		return ImportResult{}, err
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("read import: %w", err)
	}

	plan, err := ParseImport(decodeImportText(raw))
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{TotalRows: plan.Total, Failed: plan.InvalidRows, Errors: []ImportError{}}
	for _, e := range plan.Invalid {
		result.addError(e)
	}

	def, _ := Get(BasicSection)
	for _, row := range plan.Rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		err := s.withTx(ctx, func(tx pgx.Tx) error {
			user, err := upsertUserByEmail(ctx, tx, row.Email, row.Name)
			if err != nil {
				return err
			}
			_, err = insertEntry(ctx, tx, user.ID, def, row.Data, row.Complete)
			return err
		})
		if err != nil {
			result.Failed++
			msg := err.Error()
			if errors.Is(err, ErrEntryExists) {
				msg = fmt.Sprintf("%s already has an entry", row.Email)
			}
			result.addError(ImportError{Line: row.Line, Field: "email", Message: msg})
			continue
		}
		result.Imported++
	}

	s.record(ctx, s.pool, actor, ActionImport, nil, map[string]any{
		"total_rows": result.TotalRows,
		"imported":   result.Imported,
		"failed":     result.Failed,
	})
	logging.FromContext(ctx).Info("entries imported",
		"total_rows", result.TotalRows, "imported", result.Imported, "failed", result.Failed)
	return result, nil
}
