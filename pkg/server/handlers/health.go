package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/server/dto"
	connector "github.com/TNO/knowledge-engine/pkg/server/runtime"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "fake-smart-connector"

// HealthHandler handles health check requests
type HealthHandler struct {
	runtime *connector.Runtime
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(rt *connector.Runtime) *HealthHandler {
	return &HealthHandler{runtime: rt}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.Health{
		Status:    "healthy",
		Service:   serviceName,
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.runtime == nil {
		c.JSON(http.StatusServiceUnavailable, dto.Health{
			Status:    "not_ready",
			Service:   serviceName,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	scs, err := h.runtime.List("")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Health{
		Status:          "ready",
		Service:         serviceName,
		Version:         Version,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		KnowledgeBases:  len(scs),
		PollTimeoutSecs: int(h.runtime.PollTimeout().Seconds()),
	})
}

// VersionInfo handles GET /version
func (h *HealthHandler) VersionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    Version,
		"git_commit": GitCommit,
		"go_version": GoVersion,
	})
}
