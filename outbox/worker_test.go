package outbox

import (
	"context"
	"errors"
	"testing"

	"cortexserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryTriggerStore struct {
	nextID   uint
	triggers []models.EmailTrigger
}

func (s *memoryTriggerStore) Insert(ctx context.Context, userID uint, kind string) (bool, error) {
	for _, t := range s.triggers {
		if t.UserID == userID && t.TriggerKind == kind {
			return false, nil
		}
	}
	s.nextID++
	trigger := models.EmailTrigger{UserID: userID, TriggerKind: kind}
	trigger.ID = s.nextID
	s.triggers = append(s.triggers, trigger)
	return true, nil
}

func (s *memoryTriggerStore) Due(ctx context.Context, limit int) ([]models.EmailTrigger, error) {
	var due []models.EmailTrigger
	for _, t := range s.triggers {
		if t.SentAt == 0 {
			due = append(due, t)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *memoryTriggerStore) MarkSent(ctx context.Context, id uint, at int64) error {
	for i := range s.triggers {
		if s.triggers[i].ID == id {
			s.triggers[i].SentAt = at
		}
	}
	return nil
}

type fakeMailer struct {
	sent     []string
	failKind string
}

func (m *fakeMailer) Send(ctx context.Context, userID uint, kind string) error {
	if kind == m.failKind {
		return errors.New("provider unavailable")
	}
	m.sent = append(m.sent, kind)
	return nil
}

func TestFireQueuesAtMostOncePerUserAndKind(t *testing.T) {
	store := &memoryTriggerStore{}
	svc := NewService(store, zap.NewNop())
	ctx := context.Background()

	svc.Fire(ctx, 1, TriggerFirstDuelCreated)
	svc.Fire(ctx, 1, TriggerFirstDuelCreated)
	svc.Fire(ctx, 1, TriggerFirstVictory)
	svc.Fire(ctx, 2, TriggerFirstDuelCreated)

	require.Len(t, store.triggers, 3)
}

func TestDrainSendsAndMarks(t *testing.T) {
	store := &memoryTriggerStore{}
	mailer := &fakeMailer{}
	ctx := context.Background()

	NewService(store, zap.NewNop()).Fire(ctx, 1, TriggerFirstDuelCreated)
	NewService(store, zap.NewNop()).Fire(ctx, 2, TriggerFirstVictory)

	worker := NewWorker(store, mailer, zap.NewNop())
	worker.Drain(ctx)

	assert.Equal(t, []string{TriggerFirstDuelCreated, TriggerFirstVictory}, mailer.sent)

	due, err := store.Due(ctx, drainBatch)
	require.NoError(t, err)
	assert.Empty(t, due, "sent triggers must not be picked up again")
}

func TestDrainRetriesFailedSends(t *testing.T) {
	store := &memoryTriggerStore{}
	mailer := &fakeMailer{failKind: TriggerFirstVictory}
	ctx := context.Background()

	svc := NewService(store, zap.NewNop())
	svc.Fire(ctx, 1, TriggerFirstDuelCreated)
	svc.Fire(ctx, 1, TriggerFirstVictory)

	worker := NewWorker(store, mailer, zap.NewNop())
	worker.Drain(ctx)

	assert.Equal(t, []string{TriggerFirstDuelCreated}, mailer.sent)
	due, err := store.Due(ctx, drainBatch)
	require.NoError(t, err)
	require.Len(t, due, 1, "the failed trigger stays queued")
	assert.Equal(t, TriggerFirstVictory, due[0].TriggerKind)

	// Provider recovers; the next round delivers the leftover.
	mailer.failKind = ""
	worker.Drain(ctx)
	due, err = store.Due(ctx, drainBatch)
	require.NoError(t, err)
	assert.Empty(t, due)
}
