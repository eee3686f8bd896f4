package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/store"
)

type TrendHandler struct {
	trends *store.TrendStore
	logger *logrus.Logger
}

func NewTrendHandler(trends *store.TrendStore, logger *logrus.Logger) *TrendHandler {
	return &TrendHandler{trends: trends, logger: logger}
}

// List returns the current trend snapshot.
func (h *TrendHandler) List(c *gin.Context) {
	snapshot, err := h.trends.Snapshot()
	if err != nil {
		h.trendError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Top returns the highest-scoring interests across all categories.
func (h *TrendHandler) Top(c *gin.Context) {
	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ranked, err := h.trends.TopInterests(limit)
	if err != nil {
		h.trendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"interests": ranked,
		"count":     len(ranked),
	})
}

// ByCategory returns one trend category by case-insensitive name.
func (h *TrendHandler) ByCategory(c *gin.Context) {
	name := c.Param("category")
	category, err := h.trends.ByCategory(name)
	if errors.Is(err, store.ErrNoTrendData) {
		h.trendError(c, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "CATEGORY_NOT_FOUND",
				"message": "Unknown trend category: " + name,
			},
		})
		return
	}
	c.JSON(http.StatusOK, category)
}

// Refresh reloads the trend file and returns the fresh snapshot.
func (h *TrendHandler) Refresh(c *gin.Context) {
	snapshot, err := h.trends.Refresh()
	if err != nil {
		h.logger.WithError(err).Error("Trend refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "TREND_REFRESH_FAILED",
				"message": "Could not reload trend data",
			},
		})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *TrendHandler) trendError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNoTrendData) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "NO_TREND_DATA",
				"message": "No trend data available",
			},
		})
		return
	}
	h.logger.WithError(err).Error("Trend lookup failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    "TREND_LOOKUP_FAILED",
			"message": "Could not read trend data",
		},
	})
}
