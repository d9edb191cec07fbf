package handlers

import (
	"errors"
	"net/http"

	"cortexserver/duel"
	"cortexserver/middlewares"
	"cortexserver/outbox"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DuelCreateHandler opens a fresh duel and returns its shareable room
// code. The creator then attaches over the websocket endpoint.
func DuelCreateHandler(c *gin.Context, store duel.Store, triggers *outbox.Service, logger *zap.Logger) {
	userID, err := middlewares.GetUserIDFromToken(c, logger)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	match, err := duel.CreateWithFreshCode(c.Request.Context(), store, duel.NewLocalRand(), userID)
	if err != nil {
		if errors.Is(err, duel.ErrRoomCodeTaken) {
			logger.Error("room code retries exhausted", zap.Uint("userID", userID))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not allocate a room code, try again"})
			return
		}
		logger.Error("Failed to create duel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create duel"})
		return
	}

	triggers.Fire(c.Request.Context(), userID, outbox.TriggerFirstDuelCreated)

	c.JSON(http.StatusCreated, gin.H{
		"matchId":  match.ID,
		"roomCode": match.RoomCode,
		"status":   match.Status,
	})
}
