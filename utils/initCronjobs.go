package utils

import (
	"time"

	"cortexserver/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Retention policy for abandoned matches: a duel nobody has touched for a
// day is expired, and expired/finished rows are deleted a day after that.
// There is no in-protocol timeout — a match stuck in waiting or ready just
// waits until this reaper gets to it.
const (
	expireAfter = 24 * time.Hour
	deleteAfter = 48 * time.Hour
)

func CronCleaner(db *gorm.DB, logger *zap.Logger) {
	c := cron.New()

	// Expire stale duels hourly.
	c.AddFunc("@hourly", func() {
		res := db.Model(&models.Match{}).
			Where("status IN ? AND updated_at <= ?",
				[]string{models.MatchWaiting, models.MatchReady},
				time.Now().Add(-expireAfter)).
			Update("status", models.MatchExpired)
		if res.Error != nil {
			logger.Error("failed to expire stale duels", zap.Error(res.Error))
		} else if res.RowsAffected > 0 {
			logger.Info("expired stale duels", zap.Int64("count", res.RowsAffected))
		}
	})

	// Hard-delete long-dead rows at night.
	c.AddFunc("0 3 * * *", func() {
		res := db.Where("status IN ? AND updated_at <= ?",
			[]string{models.MatchExpired, models.MatchFinished},
			time.Now().Add(-deleteAfter)).
			Delete(&models.Match{})
		if res.Error != nil {
			logger.Error("failed to delete dead duels", zap.Error(res.Error))
		} else if res.RowsAffected > 0 {
			logger.Info("deleted dead duels", zap.Int64("count", res.RowsAffected))
		}
	})

	c.Start()
}
