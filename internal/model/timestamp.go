package model

import (
	"strings"
	"time"
)

// ScheduleLayout is how report and visit times are written to the sheets.
const ScheduleLayout = "2006-01-02 15:04"

var timestampLayouts = []string{
	ScheduleLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
	"2006.01.02 15:04",
	"2006.01.02",
}

func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func FormatTimestamp(ts time.Time) string {
	return ts.Format(ScheduleLayout)
}
