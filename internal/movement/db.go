package movement

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fawkesdbs/app-dt-lesira/internal/clock"
	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/model"
)

// DBLog stores movement transitions in a relational table shared by all
// terminals. Deduplication checks the operator's latest row across days, so
// an operator who signed in yesterday and never signed out stays deduplicated
// past midnight.
type DBLog struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewDBLog creates a database-backed movement log.
func NewDBLog(db *gorm.DB, clk clock.Clock) *DBLog {
	return &DBLog{db: db, clock: clk}
}

// LogEvent inserts a transition unless the operator's most recent row
// already carries the same state.
func (d *DBLog) LogEvent(operator, station, state string) (bool, error) {
	var last model.OperatorEvent
	err := d.db.
		Where("operator = ?", operator).
		Order("event_time desc, id desc").
		First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to query last movement for %s: %w", operator, err)
	}
	if err == nil && last.State == state {
		return false, nil
	}

	row := model.OperatorEvent{
		Operator:  operator,
		Station:   station,
		EventTime: d.clock.Now(),
		State:     state,
	}
	if err := d.db.Create(&row).Error; err != nil {
		return false, fmt.Errorf("failed to insert movement event: %w", err)
	}
	return true, nil
}

// Load returns the day's movement rows in time order.
func (d *DBLog) Load(day string) ([]Record, error) {
	start, err := time.ParseInLocation(event.DayLayout, day, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid day partition key %q: %w", day, err)
	}
	end := start.AddDate(0, 0, 1)

	var rows []model.OperatorEvent
	if err := d.db.
		Where("event_time >= ? AND event_time < ?", start, end).
		Order("event_time asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query movement log %s: %w", day, err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			Operator: row.Operator,
			Station:  row.Station,
			Time:     row.EventTime.Format(event.TimeLayout),
			State:    row.State,
		})
	}
	return records, nil
}

// CurrentStations derives operator -> station for every operator whose
// latest movement event is a sign-in.
func (d *DBLog) CurrentStations() (map[string]string, error) {
	var rows []model.OperatorEvent
	if err := d.db.
		Order("event_time asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query movement events: %w", err)
	}

	latest := make(map[string]model.OperatorEvent)
	for _, row := range rows {
		latest[row.Operator] = row
	}

	stations := make(map[string]string)
	for operator, row := range latest {
		if row.State == StateSignIn {
			stations[operator] = row.Station
		}
	}
	return stations, nil
}
