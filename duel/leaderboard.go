package duel

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// LeaderboardEntry is one row of the best-average-reaction board.
type LeaderboardEntry struct {
	UserID        uint    `json:"userId"`
	Nickname      string  `json:"nickname"`
	AvgReactionMs float64 `json:"avgReactionMs"`
	DuelsPlayed   int64   `json:"duelsPlayed"`
}

// LeaderboardReader is read-only display plumbing; it has no concurrency
// concerns and no part in match state.
type LeaderboardReader struct {
	db *gorm.DB
}

func NewLeaderboardReader(db *gorm.DB) *LeaderboardReader {
	return &LeaderboardReader{db: db}
}

const leaderboardSQL = `
	SELECT u.id AS user_id, u.nickname, AVG(t.ms) AS avg_reaction_ms, COUNT(*) AS duels_played
	FROM (
		SELECT player1_id AS player_id, player1_reaction_ms AS ms FROM matches
			WHERE status = 'finished' AND player1_reaction_ms > 0 AND deleted_at IS NULL
		UNION ALL
		SELECT player2_id AS player_id, player2_reaction_ms AS ms FROM matches
			WHERE status = 'finished' AND player2_reaction_ms > 0 AND deleted_at IS NULL
	) t
	JOIN users u ON u.id = t.player_id
	GROUP BY u.id, u.nickname
	ORDER BY avg_reaction_ms ASC
	LIMIT ?`

func (r *LeaderboardReader) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []LeaderboardEntry
	if err := r.db.WithContext(ctx).Raw(leaderboardSQL, limit).Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return entries, nil
}
