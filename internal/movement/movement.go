package movement

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fawkesdbs/app-dt-lesira/internal/clock"
	"github.com/fawkesdbs/app-dt-lesira/internal/event"
)

// Operator movement states.
const (
	StateSignIn  = "sign-in"
	StateSignOut = "sign-out"
)

// Record is one sign-in/sign-out transition in a day's movement log.
type Record struct {
	Operator string `json:"operator"`
	Station  string `json:"station"`
	Time     string `json:"time"`
	State    string `json:"state"`
}

// Recorder appends operator movement transitions. LogEvent returns false
// when the event was suppressed because the operator's most recent entry
// already holds the same state; movement logs are monotonic and append-only,
// so there is no undo.
type Recorder interface {
	LogEvent(operator, station, state string) (bool, error)
	Load(day string) ([]Record, error)
}

// FileLog keeps one JSON movement document per day on local disk.
type FileLog struct {
	dir   string
	clock clock.Clock
}

// NewFileLog creates a file-backed movement log under dir.
func NewFileLog(dir string, clk clock.Clock) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create movement log directory %s: %w", dir, err)
	}
	return &FileLog{dir: dir, clock: clk}, nil
}

func (f *FileLog) path(day string) string {
	return filepath.Join(f.dir, "movement_"+day+".json")
}

// Load returns the day's movement records in append order.
func (f *FileLog) Load(day string) ([]Record, error) {
	data, err := os.ReadFile(f.path(day))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read movement log %s: %w", day, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse movement log %s: %w", day, err)
	}
	return records, nil
}

// LogEvent appends a transition to today's partition unless the operator's
// most recent entry already carries the same state.
func (f *FileLog) LogEvent(operator, station, state string) (bool, error) {
	now := f.clock.Now()
	day := event.DayKey(now)

	records, err := f.Load(day)
	if err != nil {
		return false, err
	}

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Operator != operator {
			continue
		}
		if records[i].State == state {
			return false, nil
		}
		break
	}

	records = append(records, Record{
		Operator: operator,
		Station:  station,
		Time:     now.Format(event.TimeLayout),
		State:    state,
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal movement log %s: %w", day, err)
	}
	if err := os.WriteFile(f.path(day), data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write movement log %s: %w", day, err)
	}
	return true, nil
}
