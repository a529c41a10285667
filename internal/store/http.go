package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
)

// HTTPBackend talks to a remote log service:
//
//	GET  /log?date=YYYY-MM-DD  -> list of event records
//	POST /log                  -> create one record
//	PUT  /log/{id}             -> update one record
//
// Any non-2xx status is a store failure. When a fallback backend is set,
// requests that fail at the transport level (service unreachable, timeout)
// are retried against it; status failures are not, since the service did
// answer.
type HTTPBackend struct {
	base     string
	client   *http.Client
	fallback Backend
}

// NewHTTPBackend creates a remote-log-service backend. fallback may be nil.
func NewHTTPBackend(base string, fallback Backend) *HTTPBackend {
	return &HTTPBackend{
		base:     strings.TrimRight(base, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: fallback,
	}
}

// Load fetches the day's entries from the log service.
func (h *HTTPBackend) Load(day string) ([]event.Record, error) {
	resp, err := h.client.Get(h.base + "/log?date=" + url.QueryEscape(day))
	if err != nil {
		if h.fallback != nil {
			log.Printf("store: log service unreachable, loading %s from fallback: %v", day, err)
			return h.fallback.Load(day)
		}
		return nil, fmt.Errorf("log service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("log service returned status %d for day %s", resp.StatusCode, day)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read log service response: %w", err)
	}

	var entries []event.Record
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse log service response: %w", err)
	}
	return entries, nil
}

// Append creates each entry on the log service with one POST per record.
// A transport failure mid-way leaves earlier entries created; that partial
// application is accepted, matching the no-rollback policy of the store.
func (h *HTTPBackend) Append(day string, entries []event.Record) error {
	for i, entry := range entries {
		if err := h.send(http.MethodPost, h.base+"/log", entry); err != nil {
			if h.fallback != nil && isTransport(err) {
				log.Printf("store: log service unreachable, appending to fallback: %v", err)
				return h.fallback.Append(day, entries[i:])
			}
			return fmt.Errorf("failed to create event %s: %w", entry.ID, err)
		}
	}
	return nil
}

// Update overwrites each entry by id with one PUT per record.
func (h *HTTPBackend) Update(day string, entries []event.Record) error {
	for i, entry := range entries {
		if err := h.send(http.MethodPut, h.base+"/log/"+url.PathEscape(entry.ID), entry); err != nil {
			if h.fallback != nil && isTransport(err) {
				log.Printf("store: log service unreachable, updating fallback: %v", err)
				return h.fallback.Update(day, entries[i:])
			}
			return fmt.Errorf("failed to update event %s: %w", entry.ID, err)
		}
	}
	return nil
}

// transportError marks failures where the service never answered.
type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	_, ok := err.(transportError)
	return ok
}

func (h *HTTPBackend) send(method, target string, entry event.Record) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return transportError{err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("log service returned status %d", resp.StatusCode)
	}
	return nil
}
