package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fawkesdbs/app-dt-lesira/internal/movement"
	"github.com/fawkesdbs/app-dt-lesira/internal/stationmap"
)

type signInRequest struct {
	OperatorID string `json:"operator_id"`
	Operator   string `json:"operator"`
	Station    string `json:"station" binding:"required"`
}

// resolveOperator maps a badge ID to a display name, or accepts a display
// name directly.
func (h *Handler) resolveOperator(operatorID, operator string) (string, bool) {
	if operatorID != "" {
		name, ok := h.catalog.Operators[operatorID]
		return name, ok
	}
	return operator, operator != ""
}

// SignIn records an operator's arrival at a station: a movement log entry
// plus a station assignment. A repeated sign-in with no sign-out in between
// is reported as deduplicated.
func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	operator, ok := h.resolveOperator(req.OperatorID, req.Operator)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown operator"})
		return
	}
	if !h.catalog.ValidStation(req.Station) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown station"})
		return
	}

	if err := h.stations.ClearIfNewDay(); err != nil {
		log.Printf("api: daily station map clear failed: %v", err)
	}

	logged, err := h.movement.LogEvent(operator, req.Station, movement.StateSignIn)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record sign-in"})
		return
	}

	if err := h.stations.Set(operator, req.Station); err != nil {
		log.Printf("api: failed to assign %s to %s: %v", operator, req.Station, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"operator": operator,
		"station":  req.Station,
		"logged":   logged,
	})
}

type signOutRequest struct {
	OperatorID string `json:"operator_id"`
	Operator   string `json:"operator"`
}

// SignOut records an operator leaving the floor and drops the station
// assignment. Signing out an operator who never signed in is rejected here,
// before the movement log is touched.
func (h *Handler) SignOut(c *gin.Context) {
	var req signOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	operator, ok := h.resolveOperator(req.OperatorID, req.Operator)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown operator"})
		return
	}

	station := h.stations.Get(operator)
	if station == stationmap.Unassigned {
		c.JSON(http.StatusConflict, gin.H{"error": "operator is not signed in"})
		return
	}

	logged, err := h.movement.LogEvent(operator, station, movement.StateSignOut)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record sign-out"})
		return
	}

	if err := h.stations.Remove(operator); err != nil {
		log.Printf("api: failed to unassign %s: %v", operator, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"operator": operator,
		"station":  station,
		"logged":   logged,
	})
}

// GetStations returns the configured station list and the current
// operator-station assignments.
func (h *Handler) GetStations(c *gin.Context) {
	if err := h.stations.ClearIfNewDay(); err != nil {
		log.Printf("api: daily station map clear failed: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"stations":    h.catalog.Stations,
		"assignments": h.stations.Snapshot(),
	})
}
