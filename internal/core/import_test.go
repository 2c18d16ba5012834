package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseImport(t *testing.T) {
	text := strings.Join([]string{
		"email,name,team_name,category",
		"A@Example.com,Aoi,Owls,team",
		"bad-email,Ken,Hawks,duo",
		",,,",
		"c@example.com,Mio,Cats,tango",
		"d@example.com,Dee,,solo",
	}, "\r\n")

	plan, err := ParseImport(text)
	if err != nil {
		t.Fatalf("ParseImport() error = %v", err)
	}

	if plan.Total != 4 {
		t.Errorf("Total = %d, want 4", plan.Total)
	}
	if plan.InvalidRows != 3 {
		t.Errorf("InvalidRows = %d, want 3", plan.InvalidRows)
	}
	if len(plan.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(plan.Rows))
	}

	row := plan.Rows[0]
	if row.Line != 2 || row.Email != "a@example.com" || row.Name != "Aoi" {
		t.Errorf("row = %+v", row)
	}
	if !row.Complete || row.Data["category"] != "team" {
		t.Errorf("row data = %v complete = %v", row.Data, row.Complete)
	}

	want := []ImportError{
		{Line: 3, Field: "email", Message: "must contain @"},
		{Line: 5, Field: "category", Message: "invalid enum value, must be one of: solo, duo, team"},
		{Line: 6, Field: "team_name", Message: "required field is empty"},
	}
	if len(plan.Invalid) != len(want) {
		t.Fatalf("Invalid = %v", plan.Invalid)
	}
	for i, w := range want {
		if plan.Invalid[i] != w {
			t.Errorf("Invalid[%d] = %+v, want %+v", i, plan.Invalid[i], w)
		}
	}
}

func TestParseImport_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMsg string
	}{
		{"empty file", "", "file is empty"},
		{"bom only", "\ufeff", "file is empty"},
		{"missing columns", "email,name,team_name\r\na@example.com,Aoi,Owls", "missing required columns: category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImport(tt.text)
			if !errors.Is(err, ErrInvalidImport) {
				t.Fatalf("error = %v, want ErrInvalidImport", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestImportResult_AddErrorTruncates(t *testing.T) {
	var r ImportResult
	for i := 0; i < MaxImportErrors+5; i++ {
		r.addError(ImportError{Line: i + 2, Message: fmt.Sprintf("error %d", i)})
	}
	if len(r.Errors) != MaxImportErrors {
		t.Errorf("len(Errors) = %d, want %d", len(r.Errors), MaxImportErrors)
	}
	if !r.Truncated {
		t.Error("Truncated should be set")
	}
}
