package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name      string
		changes   map[string]string
		wantField string
	}{
		{
			name: "valid change set",
			changes: map[string]string{
				"deadline.basic_info": "2026-03-01T23:59:00+09:00",
				"deadline.sns_info":   "",
				"title.home":          "Spring Cup 2026",
				"background.home":     "backgrounds/home/3f2a_stage.jpg",
				"background.entry":    "",
			},
		},
		{
			name:      "deadline for unknown section",
			changes:   map[string]string{"deadline.nope": "2026-03-01T00:00:00Z"},
			wantField: "deadline.nope",
		},
		{
			name:      "deadline not rfc 3339",
			changes:   map[string]string{"deadline.basic_info": "2026/03/01"},
			wantField: "deadline.basic_info",
		},
		{
			name:      "invalid page name",
			changes:   map[string]string{"title.Home-Page": "x"},
			wantField: "title.Home-Page",
		},
		{
			name:      "background outside its prefix",
			changes:   map[string]string{"background.home": "entries/123/photo/x.jpg"},
			wantField: "background.home",
		},
		{
			name:      "key not allowed",
			changes:   map[string]string{"admin.password": "hunter2"},
			wantField: "admin.password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSettings(tt.changes)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateSettings() error = %v", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidSetting) {
				t.Fatalf("error = %v, want ErrInvalidSetting", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) || verrs[0].Field != tt.wantField {
				t.Errorf("error fields = %v, want %s", verrs, tt.wantField)
			}
		})
	}
}

func TestBuildPublicSettings(t *testing.T) {
	now := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	all := map[string]string{
		"title.home":          "Spring Cup",
		"background.home":     "backgrounds/home/x.jpg",
		"deadline.basic_info": "2026-03-01T00:00:00Z",
		"deadline.sns_info":   "garbage",
	}

	ps := buildPublicSettings(all, now, time.UTC)

	if ps.Titles["home"] != "Spring Cup" {
		t.Errorf("Titles = %v", ps.Titles)
	}
	if ps.Backgrounds["home"] != "/api/backgrounds/home" {
		t.Errorf("Backgrounds = %v", ps.Backgrounds)
	}
	d, ok := ps.Deadlines["basic_info"]
	if !ok || d.Passed || d.Remaining != "1d 0h" {
		t.Errorf("basic_info deadline = %+v", d)
	}
	if _, ok := ps.Deadlines["sns_info"]; ok {
		t.Error("malformed deadline should be omitted")
	}
}
