package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Clock supplies the current time for event timestamps and day partitioning.
type Clock interface {
	Now() time.Time
}

// System is the wall-clock implementation.
type System struct{}

// Now returns the local wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// timeAPIResponse models the body returned by the time authority.
type timeAPIResponse struct {
	DateTime string `json:"dateTime"`
}

// Synced extrapolates drift-free time from a reference timestamp fetched from
// an external time authority. Between resyncs, Now() returns
// reference + (wall clock now - local capture instant). Readers copy the
// reference pair under the mutex so a resync can never tear the pair.
type Synced struct {
	mu        sync.Mutex
	reference time.Time
	localRef  time.Time

	url      string
	interval time.Duration
	client   *http.Client
}

// NewSynced creates a synchronized clock and performs an initial sync. A
// failed initial sync is logged, not fatal; Now() falls back to the wall
// clock until a reference is obtained.
func NewSynced(url string, interval time.Duration) *Synced {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	s := &Synced{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	if err := s.Sync(context.Background()); err != nil {
		log.Printf("clock: initial sync failed: %v", err)
	}
	return s
}

// Run resyncs the reference at the configured interval until ctx is done.
func (s *Synced) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("clock: resync loop shutting down")
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				log.Printf("clock: resync failed, keeping previous reference: %v", err)
			}
		}
	}
}

// Sync fetches a fresh reference from the time authority. On failure the
// previous reference pair is retained.
func (s *Synced) Sync(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create sync request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("time authority request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("time authority returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read time authority response: %w", err)
	}

	var apiResp timeAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("failed to unmarshal time authority response: %w", err)
	}

	reference, err := parseReference(apiResp.DateTime)
	if err != nil {
		return err
	}
	localRef := time.Now()

	s.mu.Lock()
	s.reference = reference
	s.localRef = localRef
	s.mu.Unlock()

	log.Printf("clock: synced at %s, authority time: %s", localRef.Format(time.RFC3339), reference.Format(time.RFC3339))
	return nil
}

// parseReference accepts the authority's timestamp with or without an offset.
func parseReference(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable authority timestamp %q", value)
}

// Now returns the synchronized time, or the wall clock if no reference was
// ever obtained.
func (s *Synced) Now() time.Time {
	s.mu.Lock()
	reference, localRef := s.reference, s.localRef
	s.mu.Unlock()

	if reference.IsZero() {
		return time.Now()
	}
	return reference.Add(time.Since(localRef))
}
