package workload

import (
	"strings"
	"time"
)

// FormatLastUpdate renders the last-update annotation value.
func FormatLastUpdate(t time.Time, approvedBy string) string {
	ts := t.UTC().Format(time.RFC3339)
	if approvedBy == "" {
		return ts
	}
	return ts + " (approved by " + approvedBy + ")"
}

// ParseLastUpdate reads the timestamp of a last-update annotation value,
// ignoring any approver suffix.
func ParseLastUpdate(value string) (time.Time, bool) {
	ts, _, _ := strings.Cut(strings.TrimSpace(value), " ")
	if ts == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
