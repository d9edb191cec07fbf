package handlers

import (
	"net/http"
	"strconv"

	"cortexserver/duel"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LeaderboardHandler returns the best-average-reaction-time rows for
// display.
func LeaderboardHandler(c *gin.Context, reader *duel.LeaderboardReader, logger *zap.Logger) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	entries, err := reader.Top(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to load leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
