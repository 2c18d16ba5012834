package core

import (
	"fmt"
	"time"
)

// DeadlineDisplayLayout is how deadlines are shown to participants.
const DeadlineDisplayLayout = "2006-01-02 15:04 MST"

// DeadlineInfo describes a section deadline relative to now.
type DeadlineInfo struct {
	At        time.Time `json:"at"`
	Display   string    `json:"display"`
	Passed    bool      `json:"passed"`
	Remaining string    `json:"remaining,omitempty"`
}

// FormatDeadline renders t in loc.
func FormatDeadline(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DeadlineDisplayLayout)
}

// DeadlineStatus reports whether deadline has passed and, if not, how much
// time is left: "3d 4h" beyond a day, "2h 5m" beyond an hour, otherwise "45m".
// The deadline instant itself counts as passed.
func DeadlineStatus(now, deadline time.Time) (passed bool, remaining string) {
	if !now.Before(deadline) {
		return true, ""
	}
	left := deadline.Sub(now)
	days := int(left / (24 * time.Hour))
	hours := int(left % (24 * time.Hour) / time.Hour)
	minutes := int(left % time.Hour / time.Minute)

	switch {
	case days > 0:
		return false, fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return false, fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return false, fmt.Sprintf("%dm", minutes)
	}
}

// NewDeadlineInfo builds the display form of a deadline.
func NewDeadlineInfo(now, deadline time.Time, loc *time.Location) *DeadlineInfo {
	passed, remaining := DeadlineStatus(now, deadline)
	return &DeadlineInfo{
		At:        deadline,
		Display:   FormatDeadline(deadline, loc),
		Passed:    passed,
		Remaining: remaining,
	}
}

// ParseDeadline parses a stored RFC 3339 deadline.
func ParseDeadline(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: deadline must be RFC 3339: %q", ErrInvalidSetting, value)
	}
	return t, nil
}
