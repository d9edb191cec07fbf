package models

import (
	"gorm.io/gorm"
)

// EmailTrigger records that a marketing campaign email was queued for a
// user. The composite unique index makes each (user, kind) pair fire at
// most once; duplicate fires are dropped at insert time.
type EmailTrigger struct {
	gorm.Model
	UserID      uint   `gorm:"not null;uniqueIndex:idx_email_trigger_once"`
	TriggerKind string `gorm:"not null;uniqueIndex:idx_email_trigger_once"`
	SentAt      int64  // unix seconds, 0 = queued but not sent yet
}
