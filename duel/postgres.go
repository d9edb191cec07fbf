package duel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cortexserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresStore keeps the authoritative match rows in Postgres and pushes
// every updated row to Redis pub/sub so all subscribed clients converge.
type PostgresStore struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPostgresStore(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, rdb: rdb, logger: logger}
}

func matchChannel(matchID uint) string {
	return fmt.Sprintf("duel:match:%d", matchID)
}

func (s *PostgresStore) Create(ctx context.Context, player1ID uint, roomCode string) (*models.Match, error) {
	match := &models.Match{
		RoomCode:  roomCode,
		Player1ID: player1ID,
		Status:    models.MatchWaiting,
	}
	if err := s.db.WithContext(ctx).Create(match).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoomCodeTaken
		}
		return nil, fmt.Errorf("create match: %w", err)
	}
	s.publish(ctx, match)
	return match, nil
}

func (s *PostgresStore) Get(ctx context.Context, matchID uint) (*models.Match, error) {
	var match models.Match
	if err := s.db.WithContext(ctx).First(&match, matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return &match, nil
}

func (s *PostgresStore) JoinWaiting(ctx context.Context, roomCode string, player2ID uint) (*models.Match, error) {
	var match models.Match
	err := s.db.WithContext(ctx).
		Where("room_code = ? AND status = ?", roomCode, models.MatchWaiting).
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("lookup match: %w", err)
	}
	if match.Player1ID == player2ID {
		return nil, ErrSelfJoinForbidden
	}

	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ? AND player2_id = 0", match.ID, models.MatchWaiting).
		Updates(map[string]interface{}{
			"player2_id": player2ID,
			"status":     models.MatchReady,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("join match: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone else slipped in between the read and the write.
		return nil, ErrMatchNotFound
	}
	return s.reloadAndPublish(ctx, match.ID)
}

func (s *PostgresStore) SetReady(ctx context.Context, matchID uint, slot int) (*models.Match, error) {
	col := "player1_ready"
	if slot == 2 {
		col = "player2_ready"
	}
	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchReady).
		Update(col, true)
	if res.Error != nil {
		return nil, fmt.Errorf("set ready: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.Get(ctx, matchID)
	}
	return s.reloadAndPublish(ctx, matchID)
}

func (s *PostgresStore) Start(ctx context.Context, matchID uint, startMillis int64) (*models.Match, error) {
	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ? AND start_timestamp = 0", matchID, models.MatchReady).
		Updates(map[string]interface{}{
			"status":          models.MatchStarted,
			"start_timestamp": startMillis,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("start match: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// The other player's timer fired first; their timestamp stands.
		return s.Get(ctx, matchID)
	}
	return s.reloadAndPublish(ctx, matchID)
}

func (s *PostgresStore) RecordReaction(ctx context.Context, matchID uint, slot int, millis int) (*models.Match, error) {
	col := "player1_reaction_ms"
	if slot == 2 {
		col = "player2_reaction_ms"
	}
	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ? AND "+col+" = 0", matchID, models.MatchStarted).
		Update(col, millis)
	if res.Error != nil {
		return nil, fmt.Errorf("record reaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Already recorded this epoch, or the match moved on.
		return s.Get(ctx, matchID)
	}
	return s.reloadAndPublish(ctx, matchID)
}

func (s *PostgresStore) Finish(ctx context.Context, matchID uint, winnerID uint) (*models.Match, error) {
	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ? AND winner_id = 0 AND player1_reaction_ms > 0 AND player2_reaction_ms > 0",
			matchID, models.MatchStarted).
		Updates(map[string]interface{}{
			"status":    models.MatchFinished,
			"winner_id": winnerID,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("finish match: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.Get(ctx, matchID)
	}
	return s.reloadAndPublish(ctx, matchID)
}

func (s *PostgresStore) Reset(ctx context.Context, matchID uint) (*models.Match, error) {
	res := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchFinished).
		Updates(map[string]interface{}{
			"player1_ready":       false,
			"player2_ready":       false,
			"player1_reaction_ms": 0,
			"player2_reaction_ms": 0,
			"winner_id":           0,
			"start_timestamp":     0,
			"status":              models.MatchReady,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("reset match: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.Get(ctx, matchID)
	}
	return s.reloadAndPublish(ctx, matchID)
}

func (s *PostgresStore) reloadAndPublish(ctx context.Context, matchID uint) (*models.Match, error) {
	match, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, match)
	return match, nil
}

// publish pushes the full row to every subscriber. A publish failure is
// logged but never fails the write; the row in Postgres stays the truth.
func (s *PostgresStore) publish(ctx context.Context, match *models.Match) {
	payload, err := json.Marshal(match)
	if err != nil {
		s.logger.Error("failed to marshal match snapshot", zap.Uint("matchID", match.ID), zap.Error(err))
		return
	}
	if err := s.rdb.Publish(ctx, matchChannel(match.ID), payload).Err(); err != nil {
		s.logger.Error("failed to publish match snapshot", zap.Uint("matchID", match.ID), zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}
