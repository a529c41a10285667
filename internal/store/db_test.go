package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.DowntimeEvent{}))
	return db
}

func TestDBBackendRoundtrip(t *testing.T) {
	db := newTestDB(t)
	clk := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)}
	eventLog := NewLog(NewDBBackend(db), clk, testCategories)
	day := event.DayKey(clk.now)

	ids, err := eventLog.Start(day, "Line1", []string{"Alice", "Bob"}, "No material")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	entries, err := eventLog.Load(day)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Production", entries[0].Category)
	assert.True(t, entries[0].Open())

	clk.now = clk.now.Add(90 * time.Minute)
	closed, err := eventLog.Stop(day, ids)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, closed)

	entries, err = eventLog.Load(day)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, entry.Open())
		assert.InDelta(t, 90.0, *entry.DurationMinutes, 0.001)
	}
}

func TestDBBackendDayPartitioning(t *testing.T) {
	db := newTestDB(t)
	backend := NewDBBackend(db)

	yesterday := event.Record{
		ID:        "evt-old",
		Operator:  "Alice",
		Station:   "Line1",
		StartTime: time.Date(2025, 3, 13, 22, 0, 0, 0, time.Local).Format(event.TimeLayout),
	}
	today := event.Record{
		ID:        "evt-new",
		Operator:  "Alice",
		Station:   "Line1",
		StartTime: time.Date(2025, 3, 14, 6, 0, 0, 0, time.Local).Format(event.TimeLayout),
	}
	require.NoError(t, backend.Append("2025-03-13", []event.Record{yesterday}))
	require.NoError(t, backend.Append("2025-03-14", []event.Record{today}))

	entries, err := backend.Load("2025-03-13")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-old", entries[0].ID)

	entries, err = backend.Load("2025-03-14")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-new", entries[0].ID)
}

func TestDBBackendLoadOrderIsStable(t *testing.T) {
	db := newTestDB(t)
	backend := NewDBBackend(db)

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)
	batch := []event.Record{
		{ID: "evt-b", Operator: "Bob", StartTime: base.Add(time.Minute).Format(event.TimeLayout)},
		{ID: "evt-a", Operator: "Alice", StartTime: base.Format(event.TimeLayout)},
	}
	require.NoError(t, backend.Append("2025-03-14", batch))

	for i := 0; i < 3; i++ {
		entries, err := backend.Load("2025-03-14")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "evt-a", entries[0].ID)
		assert.Equal(t, "evt-b", entries[1].ID)
	}
}

func TestDBBackendUpdateUpserts(t *testing.T) {
	db := newTestDB(t)
	backend := NewDBBackend(db)

	end := time.Date(2025, 3, 14, 10, 0, 0, 0, time.Local).Format(event.TimeLayout)
	duration := 60.0
	entry := event.Record{
		ID:              "evt-1",
		Operator:        "Alice",
		Station:         "Line1",
		StartTime:       time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local).Format(event.TimeLayout),
		EndTime:         &end,
		DurationMinutes: &duration,
	}
	require.NoError(t, backend.Update("2025-03-14", []event.Record{entry}))

	entries, err := backend.Load("2025-03-14")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Open())
}
