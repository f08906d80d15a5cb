package timecalc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/andy/tasktimer/internal/domain"
)

// NaNDuration is what FormatDuration renders for a duration that could not be
// computed, e.g. a log whose end timestamp does not parse.
const NaNDuration = "NaN:NaN:NaN"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp as sent by the backend.
// Timestamps without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp is the inverse of ParseTimestamp for values we produce.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// IsOpen reports whether the log has no valid end.
func IsOpen(l domain.TimeLog) bool {
	_, ok := ParseTimestamp(l.End)
	return !ok
}

// FindOpenInterval returns the first log, in array order, without a valid end.
// The backend keeps at most one open interval per task; if it ever sends more,
// the first one wins.
func FindOpenInterval(logs []domain.TimeLog) (domain.TimeLog, bool) {
	for _, l := range logs {
		if IsOpen(l) {
			return l, true
		}
	}
	return domain.TimeLog{}, false
}

// CountOpenIntervals is used to detect the "more than one open interval" anomaly.
func CountOpenIntervals(logs []domain.TimeLog) int {
	n := 0
	for _, l := range logs {
		if IsOpen(l) {
			n++
		}
	}
	return n
}

// ClosedDuration sums end-start in seconds over every log whose end is valid
// and strictly after its start. Logs with a missing or unparsable end add
// nothing; they are not counted "until now". A malformed start paired with a
// valid end yields NaN.
func ClosedDuration(logs []domain.TimeLog) float64 {
	var total time.Duration
	for _, l := range logs {
		end, ok := ParseTimestamp(l.End)
		if !ok {
			continue
		}
		start, ok := ParseTimestamp(l.Start)
		if !ok {
			return math.NaN()
		}
		if !end.After(start) {
			continue
		}
		total += end.Sub(start)
	}
	return total.Seconds()
}

// LogDuration is the duration of a single log in seconds, NaN when either
// bound does not parse.
func LogDuration(l domain.TimeLog) float64 {
	start, ok := ParseTimestamp(l.Start)
	if !ok {
		return math.NaN()
	}
	end, ok := ParseTimestamp(l.End)
	if !ok {
		return math.NaN()
	}
	return end.Sub(start).Seconds()
}

// OpenElapsed is the live delta of an open interval at now.
func OpenElapsed(l domain.TimeLog, now time.Time) float64 {
	start, ok := ParseTimestamp(l.Start)
	if !ok {
		return math.NaN()
	}
	return now.Sub(start).Seconds()
}

// WholeSeconds floors seconds to an integer. NaN, infinities and negatives
// become 0.
func WholeSeconds(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0
	}
	return int64(math.Floor(seconds))
}

// FormatDuration renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return NaNDuration
	}
	if seconds < 0 {
		seconds = 0
	}
	return FormatSeconds(int64(math.Floor(seconds)))
}

// FormatSeconds renders whole seconds as HH:MM:SS.
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
