package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fawkesdbs/app-dt-lesira/internal/notify"
)

type startDowntimeRequest struct {
	Station   string   `json:"station" binding:"required"`
	Reason    string   `json:"reason" binding:"required"`
	Operators []string `json:"operators" binding:"required,min=1"`
}

// StartDowntime opens a downtime event for each listed operator. Validation
// happens here, before the state machine is reached: unknown stations and
// reasons are rejected, and so are operators already in a downtime.
func (h *Handler) StartDowntime(c *gin.Context) {
	var req startDowntimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.catalog.ValidStation(req.Station) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown station"})
		return
	}
	if _, ok := h.catalog.Reasons.Category(req.Reason); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown downtime reason"})
		return
	}

	if err := h.stations.ClearIfNewDay(); err != nil {
		log.Printf("api: daily station map clear failed: %v", err)
	}

	if active := h.tracker.AlreadyActive(req.Operators); len(active) > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":            "operators already in downtime",
			"active_operators": active,
		})
		return
	}

	ids, err := h.tracker.Start(req.Station, req.Reason, req.Operators)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record downtime"})
		return
	}

	// A downtime start also pins the operators to the station.
	for _, operator := range req.Operators {
		if err := h.stations.Set(operator, req.Station); err != nil {
			log.Printf("api: failed to assign %s to %s: %v", operator, req.Station, err)
		}
	}

	if h.notifier != nil {
		category, _ := h.catalog.Reasons.Category(req.Reason)
		for _, operator := range req.Operators {
			h.notifier.Dispatch(notify.Alert{
				Station:  req.Station,
				Operator: operator,
				Reason:   req.Reason,
				Category: category,
			})
		}
	}

	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

type stopDowntimeRequest struct {
	Operators []string `json:"operators" binding:"required,min=1"`
}

// StopDowntime closes the open downtime of each listed operator. Operators
// without an open downtime are reported back as skipped, not failed.
func (h *Handler) StopDowntime(c *gin.Context) {
	var req stopDowntimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var active, skipped []string
	for _, operator := range req.Operators {
		if h.tracker.IsActive(operator) {
			active = append(active, operator)
		} else {
			skipped = append(skipped, operator)
		}
	}

	if len(active) == 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "no listed operator has an open downtime",
			"skipped": skipped,
		})
		return
	}

	closed := h.tracker.Stop(active)
	c.JSON(http.StatusOK, gin.H{
		"closed_ids": closed,
		"skipped":    skipped,
	})
}

// GetDailyLog returns today's downtime log, oldest first.
func (h *Handler) GetDailyLog(c *gin.Context) {
	entries := h.tracker.DailyLog()
	if station := c.Query("station"); station != "" {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.Station == station {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	c.JSON(http.StatusOK, entries)
}
