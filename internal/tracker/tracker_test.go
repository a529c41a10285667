package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

var testCategories = event.CategoryMap{
	"Lunch":       "Other",
	"No material": "Production",
}

func newTracker(t *testing.T) (*Tracker, *store.Log, *fakeClock, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := store.NewFileBackend(dir, false)
	require.NoError(t, err)
	clk := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)}
	eventLog := store.NewLog(backend, clk, testCategories)
	return New(eventLog), eventLog, clk, dir
}

func TestStartStopLifecycle(t *testing.T) {
	tr, _, clk, _ := newTracker(t)

	ids, err := tr.Start("Line1", "Lunch", []string{"Alice"})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.True(t, tr.IsActive("Alice"))

	entries := tr.DailyLog()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusLive, entries[0].Status)
	assert.Equal(t, "Other", entries[0].Category)

	clk.now = clk.now.Add(15 * time.Minute)
	closed := tr.Stop([]string{"Alice"})
	assert.Equal(t, ids, closed)
	assert.False(t, tr.IsActive("Alice"))

	entries = tr.DailyLog()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusDone, entries[0].Status)
	require.NotNil(t, entries[0].DurationMinutes)
	assert.InDelta(t, 15.0, *entries[0].DurationMinutes, 0.001)
}

func TestNoDoubleOpenPerOperator(t *testing.T) {
	tr, eventLog, clk, _ := newTracker(t)

	_, err := tr.Start("Line1", "Lunch", []string{"Alice"})
	require.NoError(t, err)

	// The pre-check the presentation layer relies on.
	assert.Equal(t, []string{"Alice"}, tr.AlreadyActive([]string{"Alice", "Bob"}))

	// Even through arbitrary start/stop interleavings, the store never
	// holds two open events for one operator.
	_, err = tr.Start("Line1", "No material", []string{"Bob"})
	require.NoError(t, err)
	tr.Stop([]string{"Alice"})
	_, err = tr.Start("Line2", "Lunch", []string{"Alice"})
	require.NoError(t, err)

	entries, err := eventLog.Load(event.DayKey(clk.now))
	require.NoError(t, err)
	open := make(map[string]int)
	for _, entry := range entries {
		if entry.Open() {
			open[entry.Operator]++
		}
	}
	for operator, count := range open {
		assert.Equal(t, 1, count, "operator %s has %d open events", operator, count)
	}
}

func TestTwoOperatorsIndependentEvents(t *testing.T) {
	tr, _, _, _ := newTracker(t)

	ids, err := tr.Start("Line1", "Lunch", []string{"Alice", "Bob"})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	tr.Stop([]string{"Alice"})
	assert.False(t, tr.IsActive("Alice"))
	assert.True(t, tr.IsActive("Bob"), "stopping Alice must leave Bob active")

	entries := tr.DailyLog()
	require.Len(t, entries, 2)
	byOperator := make(map[string]string)
	for _, entry := range entries {
		byOperator[entry.Operator] = entry.Status
	}
	assert.Equal(t, StatusDone, byOperator["Alice"])
	assert.Equal(t, StatusLive, byOperator["Bob"])
}

func TestRestoreFromLogIsIdempotent(t *testing.T) {
	tr, eventLog, clk, dir := newTracker(t)

	_, err := tr.Start("Line1", "Lunch", []string{"Alice", "Bob"})
	require.NoError(t, err)
	tr.Stop([]string{"Bob"})

	// A fresh process over the same log directory.
	backend, err := store.NewFileBackend(dir, false)
	require.NoError(t, err)
	restarted := New(store.NewLog(backend, clk, testCategories))

	for i := 0; i < 3; i++ {
		restarted.RestoreFromLog()
		assert.True(t, restarted.IsActive("Alice"))
		assert.False(t, restarted.IsActive("Bob"))
		assert.Len(t, restarted.AlreadyActive([]string{"Alice", "Bob"}), 1)
	}

	// The restored index points at the same event: stopping closes it.
	clk.now = clk.now.Add(time.Hour)
	closed := restarted.Stop([]string{"Alice"})
	require.Len(t, closed, 1)

	entries, err := eventLog.Load(event.DayKey(clk.now))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, entry.Open())
	}
}

func TestStopAcrossMidnightUsesStartDayPartition(t *testing.T) {
	tr, eventLog, clk, _ := newTracker(t)

	clk.now = time.Date(2025, 3, 14, 23, 50, 0, 0, time.Local)
	startDay := event.DayKey(clk.now)
	ids, err := tr.Start("Line1", "Lunch", []string{"Alice"})
	require.NoError(t, err)

	// The process runs past midnight before the stop comes in.
	clk.now = time.Date(2025, 3, 15, 0, 20, 0, 0, time.Local)
	closed := tr.Stop([]string{"Alice"})
	assert.Equal(t, ids, closed)

	entries, err := eventLog.Load(startDay)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Open())
	assert.InDelta(t, 30.0, *entries[0].DurationMinutes, 0.001)
}

func TestStopStoreFailureStillClearsIndex(t *testing.T) {
	dir := t.TempDir()
	backend, err := store.NewFileBackend(dir, false)
	require.NoError(t, err)
	clk := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)}
	tr := New(store.NewLog(backend, clk, testCategories))

	_, err = tr.Start("Line1", "Lunch", []string{"Alice"})
	require.NoError(t, err)

	// Corrupt the day log so the stop cannot be persisted.
	day := event.DayKey(clk.now)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log_"+day+".json"), []byte("{{"), 0o644))

	closed := tr.Stop([]string{"Alice"})
	assert.Empty(t, closed)
	// Optimistic removal: the index entry is gone even though the store
	// never confirmed closure.
	assert.False(t, tr.IsActive("Alice"))
}

func TestDailyLogSkipsCorruptEntries(t *testing.T) {
	tr, eventLog, clk, dir := newTracker(t)
	day := event.DayKey(clk.now)

	_, err := tr.Start("Line1", "Lunch", []string{"Alice"})
	require.NoError(t, err)
	clk.now = clk.now.Add(5 * time.Minute)
	_, err = tr.Start("Line2", "No material", []string{"Bob"})
	require.NoError(t, err)

	// Wedge in an entry with no start_time, as a crashed writer might leave.
	entries, err := eventLog.Load(day)
	require.NoError(t, err)
	entries = append(entries, event.Record{ID: "evt-broken", Operator: "Carol"})
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log_"+day+".json"), data, 0o644))

	processed := tr.DailyLog()
	require.Len(t, processed, 2)
	assert.Equal(t, "Alice", processed[0].Operator)
	assert.Equal(t, "Bob", processed[1].Operator)
	assert.True(t, processed[0].Time.Before(processed[1].Time))
}

func TestDailyLogSortsByStartTime(t *testing.T) {
	tr, _, clk, _ := newTracker(t)

	clk.now = time.Date(2025, 3, 14, 10, 0, 0, 0, time.Local)
	_, err := tr.Start("Line1", "Lunch", []string{"Bob"})
	require.NoError(t, err)

	clk.now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)
	_, err = tr.Start("Line2", "No material", []string{"Alice"})
	require.NoError(t, err)

	entries := tr.DailyLog()
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].Operator)
	assert.Equal(t, "Bob", entries[1].Operator)
}
