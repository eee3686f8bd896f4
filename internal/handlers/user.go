package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/services"
	"github.com/marketeam/adpilot/internal/store"
	"github.com/marketeam/adpilot/pkg/models"
)

type UserHandler struct {
	users   *store.UserStore
	trends  *store.TrendStore
	matcher *services.InterestMatcher
	logger  *logrus.Logger
}

func NewUserHandler(users *store.UserStore, trends *store.TrendStore, matcher *services.InterestMatcher, logger *logrus.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		trends:  trends,
		matcher: matcher,
		logger:  logger,
	}
}

// List returns the full user roster.
func (h *UserHandler) List(c *gin.Context) {
	users := h.users.All()
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// Get returns one user profile by ID.
func (h *UserHandler) Get(c *gin.Context) {
	user, ok := h.userFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// MatchUser matches a single user's interests against the current trends,
// without running the rest of the pipeline.
func (h *UserHandler) MatchUser(c *gin.Context) {
	user, ok := h.userFromPath(c)
	if !ok {
		return
	}

	trends, err := h.trends.Categories()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "NO_TREND_DATA",
				"message": "No trend data available",
			},
		})
		return
	}

	matches := h.matcher.Match(c.Request.Context(), user.AllInterests(), trends, user.Name)
	c.JSON(http.StatusOK, models.UserMatchResult{
		UserID:     user.ID,
		UserName:   user.Name,
		Matches:    matches,
		MatchCount: len(matches),
	})
}

// MatchAll matches every user against the current trends.
func (h *UserHandler) MatchAll(c *gin.Context) {
	trends, err := h.trends.Categories()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "NO_TREND_DATA",
				"message": "No trend data available",
			},
		})
		return
	}

	var results []models.UserMatchResult
	for _, user := range h.users.All() {
		matches := h.matcher.Match(c.Request.Context(), user.AllInterests(), trends, user.Name)
		results = append(results, models.UserMatchResult{
			UserID:     user.ID,
			UserName:   user.Name,
			Matches:    matches,
			MatchCount: len(matches),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

func (h *UserHandler) userFromPath(c *gin.Context) (*models.UserProfile, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "User ID must be an integer",
			},
		})
		return nil, false
	}

	user := h.users.ByID(id)
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "Unknown user ID",
			},
		})
		return nil, false
	}
	return user, true
}
