package handlers

import (
	"context"
	"sync"
	"testing"

	"cortexserver/duel"
	"cortexserver/models"
	"cortexserver/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubSession records which commands the dispatcher forwards.
type stubSession struct {
	created   int
	joined    []string
	resumed   []uint
	createErr error
}

func (s *stubSession) CreateGame(ctx context.Context) (*models.Match, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created++
	return &models.Match{RoomCode: "ABCDEF", Status: models.MatchWaiting}, nil
}

func (s *stubSession) JoinGame(ctx context.Context, roomCode string) (*models.Match, error) {
	s.joined = append(s.joined, roomCode)
	return &models.Match{RoomCode: roomCode, Status: models.MatchReady}, nil
}

func (s *stubSession) Resume(ctx context.Context, matchID uint) (*models.Match, error) {
	s.resumed = append(s.resumed, matchID)
	m := &models.Match{Status: models.MatchWaiting}
	m.ID = matchID
	return m, nil
}

func (s *stubSession) SetReady(ctx context.Context) error                      { return nil }
func (s *stubSession) RecordReactionTime(ctx context.Context, millis int) error { return nil }
func (s *stubSession) Rematch(ctx context.Context) error                       { return nil }

// stubTriggerStore counts queued triggers without a database.
type stubTriggerStore struct {
	inserted []string
}

func (s *stubTriggerStore) Insert(ctx context.Context, userID uint, kind string) (bool, error) {
	s.inserted = append(s.inserted, kind)
	return true, nil
}

func (s *stubTriggerStore) Due(ctx context.Context, limit int) ([]models.EmailTrigger, error) {
	return nil, nil
}

func (s *stubTriggerStore) MarkSent(ctx context.Context, id uint, at int64) error { return nil }

func TestDispatchCreateFiresCreationTrigger(t *testing.T) {
	session := &stubSession{}
	store := &stubTriggerStore{}
	triggers := outbox.NewService(store, zap.NewNop())

	err := dispatch(context.Background(), session, triggers, 1, wsCommand{Type: "create"})
	require.NoError(t, err)
	assert.Equal(t, 1, session.created)
	assert.Equal(t, []string{outbox.TriggerFirstDuelCreated}, store.inserted)
}

func TestDispatchCreateFailureFiresNothing(t *testing.T) {
	session := &stubSession{createErr: duel.ErrRoomCodeTaken}
	store := &stubTriggerStore{}
	triggers := outbox.NewService(store, zap.NewNop())

	err := dispatch(context.Background(), session, triggers, 1, wsCommand{Type: "create"})
	require.ErrorIs(t, err, duel.ErrRoomCodeTaken)
	assert.Empty(t, store.inserted)
}

func TestDispatchResumeByMatchID(t *testing.T) {
	session := &stubSession{}
	triggers := outbox.NewService(&stubTriggerStore{}, zap.NewNop())

	err := dispatch(context.Background(), session, triggers, 1,
		wsCommand{Type: "resume", MatchID: 42})
	require.NoError(t, err)
	assert.Equal(t, []uint{42}, session.resumed)
}

func TestDispatchUnknownCommand(t *testing.T) {
	session := &stubSession{}
	triggers := outbox.NewService(&stubTriggerStore{}, zap.NewNop())

	err := dispatch(context.Background(), session, triggers, 1, wsCommand{Type: "poke"})
	require.Error(t, err)
}

func TestMatchRefObserve(t *testing.T) {
	ref := &matchRef{}

	assert.True(t, ref.observe(5), "first binding is a change")
	assert.False(t, ref.observe(5), "same match again is not")
	assert.True(t, ref.observe(7), "rebinding is a change")
	assert.Equal(t, uint(7), ref.get())
}

func TestMatchRefConcurrentAccess(t *testing.T) {
	ref := &matchRef{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id uint) {
			defer wg.Done()
			ref.observe(id)
		}(uint(i + 1))
		go func() {
			defer wg.Done()
			ref.get()
		}()
	}
	wg.Wait()
	assert.NotZero(t, ref.get())
}
