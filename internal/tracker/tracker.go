package tracker

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/store"
)

// Status values for daily log entries.
const (
	StatusLive = "live"
	StatusDone = "done"
)

// activeEntry pins an operator's open event to the day partition it lives in.
type activeEntry struct {
	ID  string
	Day string
}

// Tracker is the in-memory index of currently open downtimes, one per
// operator at most. Commands from the terminals are serialized behind one
// mutex; the only other goroutine touching shared state is the clock resync,
// which has its own lock.
type Tracker struct {
	mu     sync.Mutex
	log    *store.Log
	active map[string]activeEntry
}

// New creates a Tracker over the given store log.
func New(storeLog *store.Log) *Tracker {
	return &Tracker{
		log:    storeLog,
		active: make(map[string]activeEntry),
	}
}

// RestoreFromLog rebuilds the active index from today's open events. Safe to
// call any number of times; each successful call reconciles the index with
// the store rather than accumulating entries. If the store is unreachable
// the previous index is retained.
func (t *Tracker) RestoreFromLog() {
	t.mu.Lock()
	defer t.mu.Unlock()

	day := event.DayKey(t.log.Now())
	entries, err := t.log.Load(day)
	if err != nil {
		log.Printf("tracker: failed to restore active downtimes for %s: %v", day, err)
		return
	}

	t.active = make(map[string]activeEntry)
	for _, entry := range entries {
		if !entry.Open() || entry.Operator == "" || entry.ID == "" {
			continue
		}
		t.active[entry.Operator] = activeEntry{ID: entry.ID, Day: day}
	}
	log.Printf("tracker: restored %d active downtime(s) for %s", len(t.active), day)
}

// AlreadyActive returns the subset of candidates currently in a downtime.
// Callers use it to reject start requests before they reach Start.
func (t *Tracker) AlreadyActive(operators []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var active []string
	for _, operator := range operators {
		if _, ok := t.active[operator]; ok {
			active = append(active, operator)
		}
	}
	return active
}

// IsActive reports whether the operator is currently in a downtime.
func (t *Tracker) IsActive(operator string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[operator]
	return ok
}

// Start opens one downtime event per operator. Precondition: none of the
// operators is active; the caller filters with AlreadyActive first. Returns
// the ids actually recorded; on a store failure no index entry is added and
// the error is reported so the terminal can surface a degraded result.
func (t *Tracker) Start(station, reason string, operators []string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	day := event.DayKey(t.log.Now())
	ids, err := t.log.Start(day, station, operators, reason)
	if err != nil {
		log.Printf("tracker: failed to start downtime for %v: %v", operators, err)
		return nil, err
	}

	for i, operator := range operators {
		if i >= len(ids) {
			break
		}
		t.active[operator] = activeEntry{ID: ids[i], Day: day}
	}
	return ids, nil
}

// Stop closes the open downtime of each operator. Precondition: all are
// active. Operators whose open event started on a prior day are stopped
// against that day's partition. Index entries are removed even when the
// store could not confirm closure; a confirmed-only removal would be safer
// but the optimistic behavior is the contract here.
func (t *Tracker) Stop(operators []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	idsByDay := make(map[string][]string)
	for _, operator := range operators {
		if entry, ok := t.active[operator]; ok && entry.ID != "" {
			idsByDay[entry.Day] = append(idsByDay[entry.Day], entry.ID)
		}
	}

	var closed []string
	for day, ids := range idsByDay {
		closedIDs, err := t.log.Stop(day, ids)
		if err != nil {
			log.Printf("tracker: failed to stop downtime(s) on %s: %v", day, err)
			continue
		}
		closed = append(closed, closedIDs...)
	}

	for _, operator := range operators {
		delete(t.active, operator)
	}
	return closed
}

// LogEntry is one presentation-ready row of the daily log.
type LogEntry struct {
	Time            time.Time `json:"time"`
	Category        string    `json:"category"`
	Reason          string    `json:"downtime"`
	Operator        string    `json:"operator"`
	Station         string    `json:"station"`
	EndTime         *string   `json:"end_time"`
	DurationMinutes *float64  `json:"duration_minutes"`
	Status          string    `json:"status"`
}

// DailyLog returns today's entries sorted by start time. Entries that fail
// to parse are skipped with a warning so one corrupt record cannot take the
// whole listing down. On a store failure the result is empty.
func (t *Tracker) DailyLog() []LogEntry {
	day := event.DayKey(t.log.Now())
	entries, err := t.log.Load(day)
	if err != nil {
		log.Printf("tracker: failed to load daily log for %s: %v", day, err)
		return nil
	}

	processed := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		start, err := entry.StartAt()
		if err != nil {
			log.Printf("tracker: skipping invalid log entry: %v", err)
			continue
		}

		status := StatusDone
		if entry.Open() {
			status = StatusLive
		}
		processed = append(processed, LogEntry{
			Time:            start,
			Category:        entry.Category,
			Reason:          entry.Reason,
			Operator:        entry.Operator,
			Station:         entry.Station,
			EndTime:         entry.EndTime,
			DurationMinutes: entry.DurationMinutes,
			Status:          status,
		})
	}

	sort.SliceStable(processed, func(i, j int) bool {
		return processed[i].Time.Before(processed[j].Time)
	})
	return processed
}
