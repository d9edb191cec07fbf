package models

import (
	"gorm.io/gorm"
)

// User is one issued identity. Rows are created lazily the first time a
// token is handed out.
type User struct {
	gorm.Model
	Nickname           string `gorm:"not null"`
	SubscriptionStatus string `gorm:"not null;default:'free'"`
}
