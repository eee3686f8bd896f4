package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/services"
)

type HealthHandler struct {
	services *services.Services
	logger   *logrus.Logger
	started  time.Time
}

func NewHealthHandler(logger *logrus.Logger, services *services.Services) *HealthHandler {
	return &HealthHandler{
		services: services,
		logger:   logger,
		started:  time.Now(),
	}
}

// Check reports liveness plus which optional capabilities are active. The
// service is healthy even with every provider disabled; the deterministic
// fallbacks still serve requests.
func (h *HealthHandler) Check(c *gin.Context) {
	trendsLoaded := true
	if _, err := h.services.Trends.Snapshot(); err != nil {
		trendsLoaded = false
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).String(),
		"capabilities": gin.H{
			"llm":              h.services.LLM != nil,
			"image_generation": h.services.ImageGenerator.Enabled(),
			"trend_data":       trendsLoaded,
		},
		"users": len(h.services.Users.All()),
	})
}
