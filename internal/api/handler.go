package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/movement"
	"github.com/fawkesdbs/app-dt-lesira/internal/notify"
	"github.com/fawkesdbs/app-dt-lesira/internal/stationmap"
	"github.com/fawkesdbs/app-dt-lesira/internal/tracker"
)

// Catalog is the read-only lookup data the terminals work against.
type Catalog struct {
	Stations  []string
	Operators map[string]string
	Reasons   event.CategoryMap
}

// ValidStation reports whether the station is configured on this floor.
func (c Catalog) ValidStation(station string) bool {
	for _, s := range c.Stations {
		if s == station {
			return true
		}
	}
	return false
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	tracker  *tracker.Tracker
	stations *stationmap.Map
	movement movement.Recorder
	catalog  Catalog

	// notifier and db are nil when push alerts are disabled.
	notifier *notify.WorkerPool
	db       *gorm.DB
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(t *tracker.Tracker, stations *stationmap.Map, mv movement.Recorder, catalog Catalog) *Handler {
	return &Handler{
		tracker:  t,
		stations: stations,
		movement: mv,
		catalog:  catalog,
	}
}

// WithPush attaches the subscription store and alert pool.
func (h *Handler) WithPush(db *gorm.DB, pool *notify.WorkerPool, options *webpush.Options) *Handler {
	h.db = db
	h.notifier = pool
	h.webpush = options
	return h
}
