package stationmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fawkesdbs/app-dt-lesira/internal/clock"
	"github.com/fawkesdbs/app-dt-lesira/internal/event"
)

// Unassigned is returned for operators with no station assignment.
const Unassigned = "Unknown"

const (
	mapFilename     = "operator_station_map.json"
	clearedFilename = "operator_station_map_last_cleared.txt"
)

// Map assigns operators to stations, persisted as a flat JSON file shared by
// every terminal on the floor. Each accessor reloads the file before reading
// or mutating; with multiple writers and no lock, a stale in-process cache
// would lose assignments far more often than the extra reads cost.
type Map struct {
	path        string
	clearedPath string
	clock       clock.Clock
}

// New creates a Map persisted under dir.
func New(dir string, clk clock.Clock) (*Map, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create map directory %s: %w", dir, err)
	}
	return &Map{
		path:        filepath.Join(dir, mapFilename),
		clearedPath: filepath.Join(dir, clearedFilename),
		clock:       clk,
	}, nil
}

func (m *Map) load() (map[string]string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read station map: %w", err)
	}

	assignments := make(map[string]string)
	if err := json.Unmarshal(data, &assignments); err != nil {
		return nil, fmt.Errorf("failed to parse station map: %w", err)
	}
	return assignments, nil
}

func (m *Map) save(assignments map[string]string) error {
	data, err := json.MarshalIndent(assignments, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal station map: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write station map: %w", err)
	}
	return nil
}

// Get returns the operator's assigned station, or Unassigned.
func (m *Map) Get(operator string) string {
	assignments, err := m.load()
	if err != nil {
		log.Printf("stationmap: %v", err)
		return Unassigned
	}
	if station, ok := assignments[operator]; ok {
		return station
	}
	return Unassigned
}

// Set assigns an operator to a station, write-through.
func (m *Map) Set(operator, station string) error {
	assignments, err := m.load()
	if err != nil {
		return err
	}
	assignments[operator] = station
	return m.save(assignments)
}

// Remove drops an operator's assignment. Removing an unknown operator is a
// no-op.
func (m *Map) Remove(operator string) error {
	assignments, err := m.load()
	if err != nil {
		return err
	}
	if _, ok := assignments[operator]; !ok {
		return nil
	}
	delete(assignments, operator)
	return m.save(assignments)
}

// Snapshot returns a copy of all current assignments. On a storage failure
// the snapshot is empty.
func (m *Map) Snapshot() map[string]string {
	assignments, err := m.load()
	if err != nil {
		log.Printf("stationmap: %v", err)
		return map[string]string{}
	}
	return assignments
}

// Clear removes every assignment.
func (m *Map) Clear() error {
	return m.save(map[string]string{})
}

func (m *Map) lastCleared() string {
	data, err := os.ReadFile(m.clearedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("stationmap: failed to read last cleared date: %v", err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (m *Map) setLastCleared(day string) error {
	if err := os.WriteFile(m.clearedPath, []byte(day), 0o644); err != nil {
		return fmt.Errorf("failed to write last cleared date: %w", err)
	}
	return nil
}

// ClearIfNewDay empties the map the first time it runs on a new calendar day
// and records today as cleared. Concurrent invocations from several
// terminals are tolerated: the marker is last-write-wins, and a double clear
// on the same day only re-empties a map nothing has written to yet.
func (m *Map) ClearIfNewDay() error {
	today := event.DayKey(m.clock.Now())
	if m.lastCleared() == today {
		return nil
	}

	if err := m.Clear(); err != nil {
		return err
	}
	if err := m.setLastCleared(today); err != nil {
		return err
	}
	log.Printf("stationmap: cleared for new day %s", today)
	return nil
}
