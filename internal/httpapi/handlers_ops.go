package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *handler) healthz(c *gin.Context) {
	ok(c, http.StatusOK, "ok", nil)
}

// readyz pings Redis and the user store with a short deadline.
func (h *handler) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.engine.Ping(ctx); err != nil {
		h.log.WarnContext(ctx, "readiness check failed", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "not ready"})
		return
	}
	ok(c, http.StatusOK, "ready", nil)
}
