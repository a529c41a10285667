package store

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
)

// logService is a minimal in-memory implementation of the remote log
// service protocol for tests.
type logService struct {
	mu      sync.Mutex
	entries map[string][]event.Record // day -> entries
}

func newLogService() *logService {
	return &logService{entries: make(map[string][]event.Record)}
}

func (s *logService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /log", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		day := r.URL.Query().Get("date")
		json.NewEncoder(w).Encode(s.entries[day])
	})
	mux.HandleFunc("POST /log", func(w http.ResponseWriter, r *http.Request) {
		var entry event.Record
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		start, err := entry.StartAt()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		day := event.DayKey(start)
		s.entries[day] = append(s.entries[day], entry)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("PUT /log/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var entry event.Record
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for day, entries := range s.entries {
			for i := range entries {
				if entries[i].ID == id {
					s.entries[day][i] = entry
					w.WriteHeader(http.StatusOK)
					return
				}
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	return mux
}

func TestHTTPBackendRoundtrip(t *testing.T) {
	service := newLogService()
	server := httptest.NewServer(service.handler())
	defer server.Close()

	clk := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)}
	eventLog := NewLog(NewHTTPBackend(server.URL, nil), clk, testCategories)
	day := event.DayKey(clk.now)

	ids, err := eventLog.Start(day, "Line1", []string{"Alice", "Bob"}, "Lunch")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	clk.now = clk.now.Add(10 * time.Minute)
	closed, err := eventLog.Stop(day, ids)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, closed)

	entries, err := eventLog.Load(day)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.False(t, entry.Open())
		assert.InDelta(t, 10.0, *entry.DurationMinutes, 0.001)
	}
}

func TestHTTPBackendStatusFailureIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, nil)
	_, err := backend.Load("2025-03-14")
	assert.Error(t, err)

	err = backend.Append("2025-03-14", []event.Record{{ID: "evt-1"}})
	assert.Error(t, err)
}

func TestHTTPBackendFallsBackWhenUnreachable(t *testing.T) {
	fallback, err := NewFileBackend(t.TempDir(), false)
	require.NoError(t, err)

	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	backend := NewHTTPBackend(server.URL, fallback)
	day := "2025-03-14"
	entry := event.Record{ID: "evt-1", Operator: "Alice", StartTime: "2025-03-14T09:00:00Z"}

	require.NoError(t, backend.Append(day, []event.Record{entry}))

	entries, err := backend.Load(day)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-1", entries[0].ID)

	closed := entry
	end := "2025-03-14T09:30:00Z"
	duration := 30.0
	closed.EndTime = &end
	closed.DurationMinutes = &duration
	require.NoError(t, backend.Update(day, []event.Record{closed}))

	entries, err = fallback.Load(day)
	require.NoError(t, err)
	assert.False(t, entries[0].Open())
}

func TestHTTPBackendNoFallbackUnreachableIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	backend := NewHTTPBackend(server.URL, nil)
	_, err := backend.Load("2025-03-14")
	assert.Error(t, err)
}
