package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/model"
)

// DBBackend stores events as rows in a relational table, selected per day by
// the date of start_time. Row-level insert and update give each record its
// own atomicity; no read-modify-write of the whole day is needed.
type DBBackend struct {
	db *gorm.DB
}

// NewDBBackend creates a database-backed day log.
func NewDBBackend(db *gorm.DB) *DBBackend {
	return &DBBackend{db: db}
}

// dayBounds returns the [start, end) span of a day partition key in local time.
func dayBounds(day string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(event.DayLayout, day, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid day partition key %q: %w", day, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// Load returns the day's rows ordered by start time, then id for stability.
func (d *DBBackend) Load(day string) ([]event.Record, error) {
	start, end, err := dayBounds(day)
	if err != nil {
		return nil, err
	}

	var rows []model.DowntimeEvent
	if err := d.db.
		Where("start_time >= ? AND start_time < ?", start, end).
		Order("start_time asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query day log %s: %w", day, err)
	}

	entries := make([]event.Record, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToRecord(row))
	}
	return entries, nil
}

// Append inserts the entries as new rows in one transaction.
func (d *DBBackend) Append(day string, entries []event.Record) error {
	rows := make([]model.DowntimeEvent, 0, len(entries))
	for _, entry := range entries {
		row, err := recordToRow(entry)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	if err := d.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	}); err != nil {
		return fmt.Errorf("failed to insert day log rows: %w", err)
	}
	return nil
}

// Update overwrites rows by primary key; missing ids are inserted.
func (d *DBBackend) Update(day string, entries []event.Record) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			row, err := recordToRow(entry)
			if err != nil {
				return err
			}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("failed to update event %s: %w", entry.ID, err)
			}
		}
		return nil
	})
}

func rowToRecord(row model.DowntimeEvent) event.Record {
	record := event.Record{
		ID:              row.ID,
		Station:         row.Station,
		Operator:        row.Operator,
		Reason:          row.Reason,
		Category:        row.Category,
		StartTime:       row.StartTime.Format(event.TimeLayout),
		DurationMinutes: row.DurationMinutes,
	}
	if row.EndTime != nil {
		end := row.EndTime.Format(event.TimeLayout)
		record.EndTime = &end
	}
	return record
}

func recordToRow(record event.Record) (model.DowntimeEvent, error) {
	start, err := record.StartAt()
	if err != nil {
		return model.DowntimeEvent{}, err
	}

	row := model.DowntimeEvent{
		ID:              record.ID,
		Station:         record.Station,
		Operator:        record.Operator,
		Reason:          record.Reason,
		Category:        record.Category,
		StartTime:       start,
		DurationMinutes: record.DurationMinutes,
	}
	if record.EndTime != nil {
		end, err := time.Parse(event.TimeLayout, *record.EndTime)
		if err != nil {
			return model.DowntimeEvent{}, fmt.Errorf("event %s has invalid end_time %q: %w", record.ID, *record.EndTime, err)
		}
		row.EndTime = &end
	}
	return row, nil
}
