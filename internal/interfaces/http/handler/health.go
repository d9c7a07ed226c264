package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler exposes the liveness probe
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Healthz reports process liveness. It deliberately checks nothing external:
// the providers being down must not make the service restart.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}
