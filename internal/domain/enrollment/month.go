package enrollment

import (
	"strings"
	"time"
)

const (
	MonthLayout     = "2006-01-02"
	batchTimeLayout = "15:04:05"
)

// MonthStart returns the first day of t's calendar month, as seen in t's
// location, at UTC midnight so it round-trips through a DATE column.
func MonthStart(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func NextMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// NormalizeBatchTime accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func NormalizeBatchTime(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{batchTimeLayout, "15:04"} {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed.Format(batchTimeLayout), true
		}
	}
	return "", false
}
