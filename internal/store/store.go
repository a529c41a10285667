package store

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fawkesdbs/app-dt-lesira/internal/clock"
	"github.com/fawkesdbs/app-dt-lesira/internal/event"
)

// Backend is the durable side of a day-partitioned downtime log. Load must
// return entries in a stable order; Append must never drop previously stored
// entries; Update overwrites entries by id and upserts ids it cannot match.
type Backend interface {
	Load(day string) ([]event.Record, error)
	Append(day string, entries []event.Record) error
	Update(day string, entries []event.Record) error
}

// Log owns the start/stop business logic for downtime events on top of any
// Backend. Keeping this logic in one place is deliberate: backends only move
// bytes, so file, HTTP and database stores cannot drift apart semantically.
type Log struct {
	backend    Backend
	clock      clock.Clock
	categories event.CategoryMap
}

// NewLog creates a Log over the given backend.
func NewLog(backend Backend, clk clock.Clock, categories event.CategoryMap) *Log {
	return &Log{
		backend:    backend,
		clock:      clk,
		categories: categories,
	}
}

// Now returns the store's notion of current time.
func (l *Log) Now() time.Time {
	return l.clock.Now()
}

// Load returns the stored entries for a day.
func (l *Log) Load(day string) ([]event.Record, error) {
	return l.backend.Load(day)
}

// Start creates one open downtime event per operator and persists them. The
// returned ids are in the same order as the operators. The category is
// snapshotted from the reason map at creation time.
func (l *Log) Start(day, station string, operators []string, reason string) ([]string, error) {
	category, ok := l.categories.Category(reason)
	if !ok {
		return nil, fmt.Errorf("unknown downtime reason %q", reason)
	}

	now := l.clock.Now().Format(event.TimeLayout)
	ids := make([]string, 0, len(operators))
	entries := make([]event.Record, 0, len(operators))
	for _, operator := range operators {
		id := uuid.NewString()
		ids = append(ids, id)
		entries = append(entries, event.Record{
			ID:        id,
			Station:   station,
			Operator:  operator,
			Reason:    reason,
			Category:  category,
			StartTime: now,
		})
	}

	if err := l.backend.Append(day, entries); err != nil {
		return nil, fmt.Errorf("failed to persist downtime start: %w", err)
	}
	return ids, nil
}

// Stop closes the given events, setting end time and duration. Ids that are
// unknown or already closed are silently skipped; the returned list holds
// only the ids actually closed.
func (l *Log) Stop(day string, ids []string) ([]string, error) {
	entries, err := l.backend.Load(day)
	if err != nil {
		return nil, fmt.Errorf("failed to load log for stop: %w", err)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	now := l.clock.Now()
	var closed []event.Record
	var closedIDs []string
	for i := range entries {
		if !wanted[entries[i].ID] || !entries[i].Open() {
			continue
		}
		if err := entries[i].Close(now); err != nil {
			log.Printf("store: skipping unclosable event %s: %v", entries[i].ID, err)
			continue
		}
		closed = append(closed, entries[i])
		closedIDs = append(closedIDs, entries[i].ID)
	}

	if len(closed) == 0 {
		return nil, nil
	}
	if err := l.backend.Update(day, closed); err != nil {
		return nil, fmt.Errorf("failed to persist downtime stop: %w", err)
	}
	return closedIDs, nil
}
