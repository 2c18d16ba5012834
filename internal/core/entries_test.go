package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEntryWhere(t *testing.T) {
	tests := []struct {
		name      string
		filter    EntryFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			filter:    EntryFilter{},
			wantWhere: "true",
		},
		{
			name:      "status only",
			filter:    EntryFilter{Status: StatusSelected},
			wantWhere: "true AND e.status = $1",
			wantArgs:  []any{"selected"},
		},
		{
			name:      "status and escaped search",
			filter:    EntryFilter{Status: StatusDraft, Search: " 100%_owls "},
			wantWhere: "true AND e.status = $1 AND (e.team_name ILIKE $2 OR u.name ILIKE $2 OR u.email ILIKE $2)",
			wantArgs:  []any{"draft", `%100\%\_owls%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := entryWhere(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestEntryRecord(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	created := time.Date(2026, 1, 10, 3, 0, 0, 0, time.UTC)
	score := 87.5
	e := Entry{
		ID:           uuid.MustParse("6f1d7c2e-8d0a-4c53-9b7e-2a1f0c3d4e5f"),
		Email:        "a@example.com",
		Name:         "Aoi",
		TeamName:     "Owls",
		Status:       StatusSubmitted,
		Score:        &score,
		AdminComment: "strong, \"clean\" lines",
		Sections:     map[string]bool{"basic_info": true},
		CreatedAt:    created,
	}

	got := entryRecord(e, All(), jst)
	want := []string{
		"6f1d7c2e-8d0a-4c53-9b7e-2a1f0c3d4e5f", "a@example.com", "Aoi", "Owls", "submitted",
		"87.5", "strong, \"clean\" lines", "2026-01-10T12:00:00+09:00", "",
		"yes", "no", "no",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("entryRecord() =\n%v\nwant\n%v", got, want)
	}
}

func TestTeamNameAndPrefix(t *testing.T) {
	if got := teamName(map[string]any{"team_name": "Owls"}); got != "Owls" {
		t.Errorf("teamName() = %q", got)
	}
	if got := teamName(map[string]any{"team_name": 5.0}); got != "" {
		t.Errorf("teamName(non-string) = %q", got)
	}

	id := uuid.MustParse("6f1d7c2e-8d0a-4c53-9b7e-2a1f0c3d4e5f")
	if got := entryPrefix(id); got != "entries/6f1d7c2e-8d0a-4c53-9b7e-2a1f0c3d4e5f" {
		t.Errorf("entryPrefix() = %q", got)
	}
}

func TestDedupeIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := dedupeIDs([]uuid.UUID{a, uuid.Nil, b, a, b})
	if !reflect.DeepEqual(got, []uuid.UUID{a, b}) {
		t.Errorf("dedupeIDs() = %v", got)
	}
}

func TestTemplateVars(t *testing.T) {
	s := &Service{appURL: "https://entry.example.com/"}
	e := Entry{
		ID:       uuid.MustParse("6f1d7c2e-8d0a-4c53-9b7e-2a1f0c3d4e5f"),
		Email:    "a@example.com",
		Name:     "Aoi",
		TeamName: "Owls",
		Status:   StatusDraft,
		Sections: map[string]bool{"basic_info": true},
	}

	vars := s.templateVars(e)
	if vars["app_url"] != "https://entry.example.com" {
		t.Errorf("app_url = %q", vars["app_url"])
	}
	if vars["incomplete_sections"] != "SNS information" {
		t.Errorf("incomplete_sections = %q", vars["incomplete_sections"])
	}
	if vars["entry_id"] != e.ID.String() || vars["status"] != "draft" {
		t.Errorf("vars = %v", vars)
	}
}
