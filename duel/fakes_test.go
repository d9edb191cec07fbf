package duel

import (
	"context"
	"sync"
	"time"

	"cortexserver/models"
)

// memoryHub is an in-process stand-in for Postgres plus Redis pub/sub: a
// mutex-guarded row set with snapshot fan-out to subscribers. The guards
// mirror the real store's guarded UPDATE statements so the race semantics
// under test are the same.
type memoryHub struct {
	mu          sync.Mutex
	nextID      uint
	matches     map[uint]*models.Match
	subs        map[uint]map[int]*memorySub
	nextSub     int
	failCreates int // pending Create calls forced to report a collision
}

// memorySub closes its channel exactly once no matter whether the
// subscriber cancels or the hub tears the transport down.
type memorySub struct {
	ch   chan models.Match
	once sync.Once
}

func (s *memorySub) close() {
	s.once.Do(func() { close(s.ch) })
}

func newMemoryHub() *memoryHub {
	return &memoryHub{
		matches: make(map[uint]*models.Match),
		subs:    make(map[uint]map[int]*memorySub),
	}
}

var _ Store = (*memoryHub)(nil)
var _ Feed = (*memoryHub)(nil)

func (h *memoryHub) Create(ctx context.Context, player1ID uint, roomCode string) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failCreates > 0 {
		h.failCreates--
		return nil, ErrRoomCodeTaken
	}
	for _, m := range h.matches {
		if m.RoomCode == roomCode {
			return nil, ErrRoomCodeTaken
		}
	}
	h.nextID++
	match := &models.Match{
		RoomCode:  roomCode,
		Player1ID: player1ID,
		Status:    models.MatchWaiting,
	}
	match.ID = h.nextID
	match.CreatedAt = time.Now()
	match.UpdatedAt = match.CreatedAt
	h.matches[match.ID] = match
	h.broadcast(match)
	snapshot := *match
	return &snapshot, nil
}

func (h *memoryHub) Get(ctx context.Context, matchID uint) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	match, ok := h.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	snapshot := *match
	return &snapshot, nil
}

func (h *memoryHub) JoinWaiting(ctx context.Context, roomCode string, player2ID uint) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.matches {
		if m.RoomCode != roomCode || m.Status != models.MatchWaiting {
			continue
		}
		if m.Player1ID == player2ID {
			return nil, ErrSelfJoinForbidden
		}
		if m.Player2ID != 0 {
			return nil, ErrMatchNotFound
		}
		m.Player2ID = player2ID
		m.Status = models.MatchReady
		m.UpdatedAt = time.Now()
		h.broadcast(m)
		snapshot := *m
		return &snapshot, nil
	}
	return nil, ErrMatchNotFound
}

func (h *memoryHub) SetReady(ctx context.Context, matchID uint, slot int) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	match, ok := h.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if match.Status == models.MatchReady {
		if slot == 1 {
			match.Player1Ready = true
		} else {
			match.Player2Ready = true
		}
		match.UpdatedAt = time.Now()
		h.broadcast(match)
	}
	snapshot := *match
	return &snapshot, nil
}

func (h *memoryHub) Start(ctx context.Context, matchID uint, startMillis int64) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	match, ok := h.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if match.Status == models.MatchReady && match.StartTimestamp == 0 {
		match.Status = models.MatchStarted
		match.StartTimestamp = startMillis
		match.UpdatedAt = time.Now()
		h.broadcast(match)
	}
	snapshot := *match
	return &snapshot, nil
}

func (h *memoryHub) RecordReaction(ctx context.Context, matchID uint, slot int, millis int) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	match, ok := h.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if match.Status == models.MatchStarted && match.ReactionOf(slot) == 0 {
		if slot == 1 {
			match.Player1ReactionMs = millis
		} else {
			match.Player2ReactionMs = millis
		}
		match.UpdatedAt = time.Now()
		h.broadcast(match)
	}
	snapshot := *match
	return &snapshot, nil
}

func (h *memoryHub) Finish(ctx context.Context, matchID uint, winnerID uint) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	match, ok := h.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if match.Status == models.MatchStarted && match.WinnerID == 0 && match.BothRecorded() {
		match.Status = models.MatchFinished
		match.WinnerID = winnerID
		match.UpdatedAt = time.Now()
		h.broadcast(match)
	}
	snapshot := *match
	return &snapshot, nil
}

func (h *memoryHub) Reset(ctx context.Context, matchID uint) (*models.Match, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	match, ok := h.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if match.Status == models.MatchFinished {
		match.Player1Ready = false
		match.Player2Ready = false
		match.Player1ReactionMs = 0
		match.Player2ReactionMs = 0
		match.WinnerID = 0
		match.StartTimestamp = 0
		match.Status = models.MatchReady
		match.UpdatedAt = time.Now()
		h.broadcast(match)
	}
	snapshot := *match
	return &snapshot, nil
}

func (h *memoryHub) Subscribe(ctx context.Context, matchID uint) (<-chan models.Match, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &memorySub{ch: make(chan models.Match, 64)}
	if h.subs[matchID] == nil {
		h.subs[matchID] = make(map[int]*memorySub)
	}
	id := h.nextSub
	h.nextSub++
	h.subs[matchID][id] = sub

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[matchID], id)
		h.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel, nil
}

// closeAllSubs simulates losing the transport for good. Subscribers may
// still cancel afterwards; memorySub makes that a no-op.
func (h *memoryHub) closeAllSubs() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for matchID, subs := range h.subs {
		for id, sub := range subs {
			sub.close()
			delete(subs, id)
		}
		delete(h.subs, matchID)
	}
}

// broadcast is called with h.mu held; channels are buffered generously so
// a slow consumer never blocks the store.
func (h *memoryHub) broadcast(match *models.Match) {
	snapshot := *match
	for _, sub := range h.subs[match.ID] {
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

// fakeProfiles serves canned opponent projections.
type fakeProfiles map[uint]Profile

func (f fakeProfiles) Profile(ctx context.Context, userID uint) (*Profile, error) {
	p, ok := f[userID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	snapshot := p
	return &snapshot, nil
}
