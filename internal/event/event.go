package event

import (
	"fmt"
	"math"
	"time"
)

// TimeLayout is the wire format for event timestamps (ISO-8601 with offset).
const TimeLayout = time.RFC3339

// Record is one downtime occurrence for one operator, as stored in a day log.
// Timestamps stay strings on the wire so that a single malformed entry can be
// detected and skipped at read time instead of failing the whole day's log.
type Record struct {
	ID              string   `json:"id"`
	Station         string   `json:"station"`
	Operator        string   `json:"operator"`
	Reason          string   `json:"downtime"`
	Category        string   `json:"category"`
	StartTime       string   `json:"start_time"`
	EndTime         *string  `json:"end_time"`
	DurationMinutes *float64 `json:"duration_minutes"`
}

// Open reports whether the downtime is still ongoing.
func (r Record) Open() bool {
	return r.EndTime == nil
}

// StartAt parses the record's start timestamp.
func (r Record) StartAt() (time.Time, error) {
	if r.StartTime == "" {
		return time.Time{}, fmt.Errorf("event %s has no start_time", r.ID)
	}
	t, err := time.Parse(TimeLayout, r.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %s has invalid start_time %q: %w", r.ID, r.StartTime, err)
	}
	return t, nil
}

// Close sets the end timestamp and computes the duration in minutes, rounded
// to two decimals. Closing an already closed record is an error; a closed
// record is immutable.
func (r *Record) Close(now time.Time) error {
	if !r.Open() {
		return fmt.Errorf("event %s is already closed", r.ID)
	}
	start, err := r.StartAt()
	if err != nil {
		return err
	}
	end := now.Format(TimeLayout)
	duration := RoundMinutes(now.Sub(start))
	r.EndTime = &end
	r.DurationMinutes = &duration
	return nil
}

// RoundMinutes converts a duration to minutes rounded to two decimals.
func RoundMinutes(d time.Duration) float64 {
	return math.Round(d.Seconds()/60*100) / 100
}

// DayLayout is the calendar-day partition key format.
const DayLayout = "2006-01-02"

// DayKey returns the day partition key for a timestamp.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// CategoryMap maps a downtime reason to its reporting category. It is
// read-only lookup data supplied at startup.
type CategoryMap map[string]string

// Category resolves the category for a reason.
func (m CategoryMap) Category(reason string) (string, bool) {
	category, ok := m[reason]
	return category, ok
}

// Reasons returns all known downtime reasons.
func (m CategoryMap) Reasons() []string {
	reasons := make([]string, 0, len(m))
	for reason := range m {
		reasons = append(reasons, reason)
	}
	return reasons
}
