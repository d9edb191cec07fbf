package duel

import (
	"context"
	"encoding/json"
	"time"

	"cortexserver/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionTTL = 24 * time.Hour

func sessionKey(sessionID string) string {
	return "duel:session:" + sessionID
}

// GenerateAndStoreSessionID issues a reconnect handle for a websocket
// client and stores its identity in Redis for a day.
func GenerateAndStoreSessionID(ctx context.Context, rdb *redis.Client, userID, matchID uint, logger *zap.Logger) (string, error) {
	sessionID := uuid.New().String()
	if err := StoreSessionID(ctx, rdb, sessionID, userID, matchID, logger); err != nil {
		return "", err
	}
	return sessionID, nil
}

// StoreSessionID writes (or rewrites) the identity behind a reconnect
// handle. Called again whenever the client binds to a different match, so
// a reconnect after a mid-duel drop can resume that match.
func StoreSessionID(ctx context.Context, rdb *redis.Client, sessionID string, userID, matchID uint, logger *zap.Logger) error {
	sessionInfo := map[string]interface{}{
		"userID":  userID,
		"matchID": matchID,
	}
	sessionInfoJSON, err := json.Marshal(sessionInfo)
	if err != nil {
		logger.Error("Error encoding session info", zap.Error(err))
		return err
	}

	if err := rdb.Set(ctx, sessionKey(sessionID), sessionInfoJSON, sessionTTL).Err(); err != nil {
		logger.Error("Error storing session info in Redis", zap.Error(err))
		return err
	}
	return nil
}

// ValidateSessionID resolves a reconnect handle back to the client it was
// issued for, consuming it in the process. Returns nil when the handle is
// unknown or expired.
func ValidateSessionID(ctx context.Context, rdb *redis.Client, sessionID string, logger *zap.Logger) *models.Client {
	if sessionID == "" {
		return nil
	}

	sessionInfoJSON, err := rdb.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		logger.Warn("Failed to retrieve session info", zap.Error(err))
		return nil
	}

	var sessionInfo map[string]interface{}
	if err := json.Unmarshal([]byte(sessionInfoJSON), &sessionInfo); err != nil {
		logger.Error("Failed to decode session info", zap.Error(err))
		return nil
	}

	userID, ok := sessionInfo["userID"].(float64) // JSON numbers decode as float64
	if !ok {
		logger.Error("Invalid session info: missing userID")
		return nil
	}
	matchID, ok := sessionInfo["matchID"].(float64)
	if !ok {
		logger.Error("Invalid session info: missing matchID")
		return nil
	}

	// One-shot handle: a fresh one is issued on every connection.
	rdb.Del(ctx, sessionKey(sessionID))

	return &models.Client{
		UserID:  uint(userID),
		MatchID: uint(matchID),
	}
}
