package core

import (
	"errors"
	"testing"
	"time"
)

func TestDeadlineStatus(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		before        time.Duration
		wantPassed    bool
		wantRemaining string
	}{
		{"days and hours", 3*24*time.Hour + 4*time.Hour + 10*time.Minute, false, "3d 4h"},
		{"exactly one day", 24 * time.Hour, false, "1d 0h"},
		{"hours and minutes", 2*time.Hour + 5*time.Minute, false, "2h 5m"},
		{"minutes only", 45*time.Minute + 30*time.Second, false, "45m"},
		{"under a minute", 30 * time.Second, false, "0m"},
		{"deadline instant has passed", 0, true, ""},
		{"after deadline", -time.Minute, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, remaining := DeadlineStatus(deadline.Add(-tt.before), deadline)
			if passed != tt.wantPassed {
				t.Errorf("passed = %v, want %v", passed, tt.wantPassed)
			}
			if remaining != tt.wantRemaining {
				t.Errorf("remaining = %q, want %q", remaining, tt.wantRemaining)
			}
		})
	}
}

func TestFormatDeadline(t *testing.T) {
	at := time.Date(2026, 3, 1, 14, 59, 0, 0, time.UTC)
	jst := time.FixedZone("JST", 9*60*60)

	if got := FormatDeadline(at, jst); got != "2026-03-01 23:59 JST" {
		t.Errorf("FormatDeadline(JST) = %q", got)
	}
	if got := FormatDeadline(at, nil); got != "2026-03-01 14:59 UTC" {
		t.Errorf("FormatDeadline(nil) = %q", got)
	}
}

func TestNewDeadlineInfo(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	info := NewDeadlineInfo(at.Add(-90*time.Minute), at, time.UTC)

	if info.Passed || info.Remaining != "1h 30m" || !info.At.Equal(at) {
		t.Errorf("NewDeadlineInfo() = %+v", info)
	}
}

func TestParseDeadline(t *testing.T) {
	got, err := ParseDeadline("2026-03-01T23:59:00+09:00")
	if err != nil {
		t.Fatalf("ParseDeadline() error = %v", err)
	}
	if want := time.Date(2026, 3, 1, 14, 59, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ParseDeadline() = %v, want %v", got, want)
	}

	if _, err := ParseDeadline("March 1st"); !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("ParseDeadline(bad) error = %v, want ErrInvalidSetting", err)
	}
}
