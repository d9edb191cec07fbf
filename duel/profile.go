package duel

import (
	"context"
	"errors"
	"fmt"

	"cortexserver/models"

	"gorm.io/gorm"
)

// Profile is the read-only projection shown for an opponent. It plays no
// part in the fairness protocol.
type Profile struct {
	UserID        uint    `json:"userId"`
	Nickname      string  `json:"nickname"`
	AvgReactionMs float64 `json:"avgReactionMs"` // 0 when no finished duels yet
	DuelsPlayed   int64   `json:"duelsPlayed"`
}

type ProfileReader interface {
	Profile(ctx context.Context, userID uint) (*Profile, error)
}

// GormProfileReader aggregates a player's finished-duel measurements from
// both slot columns.
type GormProfileReader struct {
	db *gorm.DB
}

func NewGormProfileReader(db *gorm.DB) *GormProfileReader {
	return &GormProfileReader{db: db}
}

const reactionSamplesSQL = `
	SELECT player1_reaction_ms AS ms FROM matches
		WHERE player1_id = ? AND status = 'finished' AND player1_reaction_ms > 0 AND deleted_at IS NULL
	UNION ALL
	SELECT player2_reaction_ms AS ms FROM matches
		WHERE player2_id = ? AND status = 'finished' AND player2_reaction_ms > 0 AND deleted_at IS NULL`

func (r *GormProfileReader) Profile(ctx context.Context, userID uint) (*Profile, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var stats struct {
		Avg     float64
		Samples int64
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT COALESCE(AVG(t.ms), 0) AS avg, COUNT(*) AS samples FROM ("+reactionSamplesSQL+") t",
			userID, userID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate reactions: %w", err)
	}

	return &Profile{
		UserID:        user.ID,
		Nickname:      user.Nickname,
		AvgReactionMs: stats.Avg,
		DuelsPlayed:   stats.Samples,
	}, nil
}
