// Package outbox fires marketing email triggers at most once per user per
// campaign. Dedup lives in the database (unique index on user + kind), not
// in process memory, so restarts and multiple instances stay correct.
package outbox

import (
	"context"
	"fmt"

	"cortexserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Trigger kinds fired by the duel flow.
const (
	TriggerFirstDuelCreated = "first_duel_created"
	TriggerFirstVictory     = "first_victory"
)

// Store persists trigger rows. Insert reports whether the trigger was new;
// a duplicate (user, kind) pair is dropped silently.
type Store interface {
	Insert(ctx context.Context, userID uint, kind string) (bool, error)
	Due(ctx context.Context, limit int) ([]models.EmailTrigger, error)
	MarkSent(ctx context.Context, id uint, at int64) error
}

// Mailer hands a queued trigger to the email provider. Template content is
// the provider's business, not ours.
type Mailer interface {
	Send(ctx context.Context, userID uint, kind string) error
}

// Service is the write side: Fire enqueues a trigger exactly once.
type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Fire queues the (user, kind) trigger. Firing an already-queued pair is a
// no-op; failures are logged and swallowed so email can never break a duel.
func (s *Service) Fire(ctx context.Context, userID uint, kind string) {
	inserted, err := s.store.Insert(ctx, userID, kind)
	if err != nil {
		s.logger.Error("failed to queue email trigger",
			zap.Uint("userID", userID), zap.String("kind", kind), zap.Error(err))
		return
	}
	if inserted {
		s.logger.Info("email trigger queued",
			zap.Uint("userID", userID), zap.String("kind", kind))
	}
}

// GormStore is the Postgres-backed trigger store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, userID uint, kind string) (bool, error) {
	trigger := models.EmailTrigger{UserID: userID, TriggerKind: kind}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&trigger)
	if res.Error != nil {
		return false, fmt.Errorf("insert email trigger: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Due(ctx context.Context, limit int) ([]models.EmailTrigger, error) {
	var triggers []models.EmailTrigger
	err := s.db.WithContext(ctx).
		Where("sent_at = 0").
		Order("id").
		Limit(limit).
		Find(&triggers).Error
	if err != nil {
		return nil, fmt.Errorf("load due email triggers: %w", err)
	}
	return triggers, nil
}

func (s *GormStore) MarkSent(ctx context.Context, id uint, at int64) error {
	err := s.db.WithContext(ctx).Model(&models.EmailTrigger{}).
		Where("id = ?", id).
		Update("sent_at", at).Error
	if err != nil {
		return fmt.Errorf("mark email trigger sent: %w", err)
	}
	return nil
}

// LogMailer stands in for the real provider and just records the send.
type LogMailer struct {
	Logger *zap.Logger
}

func (m *LogMailer) Send(ctx context.Context, userID uint, kind string) error {
	m.Logger.Info("sending campaign email",
		zap.Uint("userID", userID), zap.String("kind", kind))
	return nil
}
