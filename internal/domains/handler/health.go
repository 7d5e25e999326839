package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db       Pinger
	mockMode bool
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHealthHandler creates a HealthHandler. mockMode is reported in the
// readiness body so operators can spot a missing provider configuration.
func NewHealthHandler(db Pinger, mockMode bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, mockMode: mockMode, timeout: 2 * time.Second, logger: logger}
}

// Register mounts /healthz and /readyz.
func (h *HealthHandler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /readyz. It fails while Postgres is unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		RecordReadinessCheck(false)
		h.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}
	RecordReadinessCheck(true)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up", "mock_mode": h.mockMode})
}
