package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/infrastructure/logger"
)

// healthTimeout bounds each dependency check
const healthTimeout = 2 * time.Second

// HealthChecker is a dependency the service cannot work without
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// HealthHandler reports whether every dependency answers
type HealthHandler struct {
	checkers []HealthChecker
	now      func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers, now: time.Now}
}

// Health answers 200 when all checks pass and 503 otherwise
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.checkers))
	for _, checker := range h.checkers {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		err := checker.Ping(ctx)
		cancel()
		if err != nil {
			logger.GetGinLogger(c).Warn("Health check failed",
				zap.String("dependency", checker.Name()),
				zap.Error(err),
			)
			checks[checker.Name()] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[checker.Name()] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status": state,
		"time":   h.now().UTC().Format(time.RFC3339),
		"checks": checks,
	})
}
