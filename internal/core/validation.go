package core

// validation.go checks section payloads and CSV rows against FieldSpecs.
//
// Validation happens at two levels:
//  1. Payload validation: a JSON section body is checked field by field,
//     unknown keys are rejected and values are normalized for storage
//  2. Row validation: CSV rows are checked against the same specs using a
//     header index, for bulk import
//
// A section is complete when every required field holds a non-empty value.
// Incomplete sections are still saved; completeness only drives the entry's
// per-section status flag.

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var fieldValidator = validator.New()

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool
	Errors ValidationErrors
}

// ValidateSection checks payload against def. It returns the normalized data
// to store and whether every required field is filled. Any problem is
// returned as ValidationErrors.
func ValidateSection(def SectionDefinition, payload map[string]any) (map[string]any, bool, error) {
	var errs ValidationErrors
	clean := make(map[string]any, len(def.FieldSpecs))

	unknown := make([]string, 0)
	for key := range payload {
		if _, ok := def.Spec(key); !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, ValidationError{Field: key, Message: "unknown field"})
	}

	complete := true
	for _, spec := range def.FieldSpecs {
		raw, present := payload[spec.Name]
		value, err := normalizeValue(raw, spec)
		if err != nil {
			errs = append(errs, ValidationError{Field: spec.Name, Value: describe(raw), Message: err.Error()})
			continue
		}
		if value == nil {
			if spec.Required {
				complete = false
			}
			continue
		}
		if present {
			clean[spec.Name] = value
		}
	}

	if len(errs) > 0 {
		return nil, false, errs
	}
	return clean, complete, nil
}

// normalizeValue converts a JSON value into its stored form.
// nil means empty.
func normalizeValue(raw any, spec FieldSpec) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		return normalizeString(v, spec)
	case float64:
		switch spec.Type {
		case FieldNumber:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("invalid number format")
			}
			return v, nil
		case FieldText:
			return normalizeString(FormatValue(v), spec)
		}
		return nil, fmt.Errorf("must be %s", article(spec.Type))
	case bool:
		if spec.Type == FieldBool {
			return v, nil
		}
		return nil, fmt.Errorf("must be %s", article(spec.Type))
	default:
		return nil, fmt.Errorf("must be %s", article(spec.Type))
	}
}

// normalizeString validates a non-empty string and converts it to the
// field's stored type.
func normalizeString(v string, spec FieldSpec) (any, error) {
	if err := ValidateCell(v, spec); err != nil {
		return nil, err
	}
	switch spec.Type {
	case FieldNumber:
		f, _ := ParseNumber(v)
		return f, nil
	case FieldBool:
		b, _ := ParseBool(v)
		return b, nil
	case FieldDate:
		t, _ := ParseDate(v)
		return t.Format(DateLayout), nil
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, v) {
				return ev, nil
			}
		}
	}
	return v, nil
}

// RowValidator validates CSV rows against field specifications.
type RowValidator struct {
	specs     []FieldSpec
	headerIdx HeaderIndex
}

// NewRowValidator creates a validator for the given specs and header index.
func NewRowValidator(specs []FieldSpec, headerIdx HeaderIndex) *RowValidator {
	return &RowValidator{
		specs:     specs,
		headerIdx: headerIdx,
	}
}

// ValidateRow validates a single CSV row and returns all validation errors.
func (v *RowValidator) ValidateRow(row []string) ValidationResult {
	result := ValidationResult{Valid: true}

	for _, spec := range v.specs {
		pos, ok := v.headerIdx[strings.ToLower(spec.Name)]
		if !ok || pos >= len(row) {
			if spec.Required {
				result.Valid = false
				result.Errors = append(result.Errors, ValidationError{
					Field:   spec.Name,
					Message: "missing required column",
				})
			}
			continue
		}

		raw := CleanCell(row[pos])

		if raw == "" {
			if spec.Required {
				result.Valid = false
				result.Errors = append(result.Errors, ValidationError{
					Field:   spec.Name,
					Message: "required field is empty",
				})
			}
			continue
		}

		if err := ValidateCell(raw, spec); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   spec.Name,
				Value:   raw,
				Message: err.Error(),
			})
		}
	}

	return result
}

// RowData converts a validated row into section data keyed by field name.
func (v *RowValidator) RowData(row []string) (map[string]any, bool) {
	payload := make(map[string]any, len(v.specs))
	for _, spec := range v.specs {
		if cell := v.headerIdx.Cell(row, spec.Name); cell != "" {
			payload[spec.Name] = cell
		}
	}
	data, complete, err := ValidateSection(SectionDefinition{FieldSpecs: v.specs}, payload)
	if err != nil {
		return nil, false
	}
	return data, complete
}

// ValidateCell validates a single non-empty string against a field specification.
// Returns nil if valid, or an error describing the problem.
func ValidateCell(value string, spec FieldSpec) error {
	if value == "" {
		return nil
	}

	if spec.MaxLength > 0 && utf8.RuneCountInString(value) > spec.MaxLength {
		return fmt.Errorf("must be at most %d characters", spec.MaxLength)
	}

	switch spec.Type {
	case FieldNumber:
		if _, ok := ParseNumber(value); !ok {
			return fmt.Errorf("invalid number format")
		}
	case FieldDate:
		if _, ok := ParseDate(value); !ok {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD)")
		}
	case FieldBool:
		if _, ok := ParseBool(value); !ok {
			return fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, value) {
				return nil
			}
		}
		return fmt.Errorf("invalid enum value, must be one of: %s", strings.Join(spec.EnumValues, ", "))
	case FieldEmail:
		if err := fieldValidator.Var(value, "email"); err != nil {
			return fmt.Errorf("invalid email address")
		}
	case FieldURL:
		if err := fieldValidator.Var(value, "http_url"); err != nil {
			return fmt.Errorf("invalid URL (must start with http:// or https://)")
		}
	}
	return nil
}

// ValidateHeaders validates that all required columns exist in the CSV headers.
// Returns a mapping from column name to index, or an error listing missing columns.
func ValidateHeaders(headers []string, specs []FieldSpec) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, spec := range specs {
		if spec.Required {
			if _, ok := idx[strings.ToLower(spec.Name)]; !ok {
				missing = append(missing, spec.Name)
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrInvalidImport, strings.Join(missing, ", "))
	}

	return idx, nil
}

// fieldTypeName returns a human-readable name for a field type.
func fieldTypeName(ft FieldType) string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "bool"
	case FieldEmail:
		return "email"
	case FieldURL:
		return "url"
	default:
		return "value"
	}
}

func article(ft FieldType) string {
	switch ft {
	case FieldEnum, FieldEmail:
		return "an " + fieldTypeName(ft)
	case FieldURL:
		return "a URL"
	default:
		return "a " + fieldTypeName(ft)
	}
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
