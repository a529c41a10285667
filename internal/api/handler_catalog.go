package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCatalog returns the lookup tables the terminals render their pickers
// from: station names, badge-ID to operator name, and reason to category.
func (h *Handler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stations":  h.catalog.Stations,
		"operators": h.catalog.Operators,
		"reasons":   h.catalog.Reasons,
	})
}
