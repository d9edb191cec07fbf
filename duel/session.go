package duel

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"cortexserver/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// The go signal fires a random 2-5 seconds after both players are ready,
// so neither client can anticipate the exact instant from its own input
// timing. Both clients schedule independently; the store's guarded update
// decides whose timestamp stands, and both then use that stored value.
const (
	minStartDelay = 2 * time.Second
	maxStartDelay = 5 * time.Second
)

const commandTimeout = 5 * time.Second

// Session owns one player's local view of a duel. Commands write to the
// store; the store publishes the updated row to the feed; reconciliation
// replaces the whole local snapshot with whatever the feed delivers.
// Decisions that affect both players (winner, go signal) are only ever
// computed from the authoritative row, never from optimistic local state.
type Session struct {
	userID   uint
	store    Store
	feed     Feed
	profiles ProfileReader
	clock    clockwork.Clock
	logger   *zap.Logger

	// OnChange receives every reconciled snapshot; OnError surfaces
	// transport loss. Both must be set before the first command and may
	// be called from the reconciliation goroutine.
	OnChange func(models.Match)
	OnError  func(error)

	mu           sync.Mutex
	rng          *rand.Rand
	match        *models.Match
	opponent     *Profile
	startPending bool
	startTimer   clockwork.Timer
	unsubscribe  func()
	subGen       int
}

func NewSession(userID uint, store Store, feed Feed, profiles ProfileReader, clock clockwork.Clock, logger *zap.Logger) *Session {
	return &Session{
		userID:   userID,
		store:    store,
		feed:     feed,
		profiles: profiles,
		clock:    clock,
		logger:   logger,
		rng:      NewLocalRand(),
	}
}

// CreateGame opens a fresh match in "waiting" under a new room code and
// subscribes to its feed. On failure the local state is left untouched.
func (s *Session) CreateGame(ctx context.Context) (*models.Match, error) {
	if s.userID == 0 {
		return nil, ErrAuthenticationRequired
	}
	s.mu.Lock()
	rng := s.rng
	s.mu.Unlock()

	match, err := CreateWithFreshCode(ctx, s.store, rng, s.userID)
	if err != nil {
		return nil, err
	}
	if err := s.watch(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// JoinGame joins a waiting match by room code, moving it to "ready".
func (s *Session) JoinGame(ctx context.Context, roomCode string) (*models.Match, error) {
	if s.userID == 0 {
		return nil, ErrAuthenticationRequired
	}
	match, err := s.store.JoinWaiting(ctx, roomCode, s.userID)
	if err != nil {
		return nil, err
	}
	if err := s.watch(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// Resume re-attaches to a match this user already participates in, e.g.
// after a dropped websocket.
func (s *Session) Resume(ctx context.Context, matchID uint) (*models.Match, error) {
	if s.userID == 0 {
		return nil, ErrAuthenticationRequired
	}
	match, err := s.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.IsParticipant(s.userID) {
		return nil, ErrNotParticipant
	}
	if err := s.watch(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// SetReady flips the caller's own readiness flag. Never the opponent's.
func (s *Session) SetReady(ctx context.Context) error {
	match, slot, err := s.current()
	if err != nil {
		return err
	}
	updated, err := s.store.SetReady(ctx, match.ID, slot)
	if err != nil {
		return err
	}
	// Applying the returned row means a locally observed "both ready"
	// schedules the go signal without waiting for the feed round-trip.
	s.apply(*updated)
	return nil
}

// RecordReactionTime writes the caller's measurement for this epoch.
// Re-recording after the first accepted value is a no-op.
func (s *Session) RecordReactionTime(ctx context.Context, millis int) error {
	if millis <= 0 {
		return ErrInvalidMeasurement
	}
	match, slot, err := s.current()
	if err != nil {
		return err
	}
	updated, err := s.store.RecordReaction(ctx, match.ID, slot, millis)
	if err != nil {
		return err
	}
	s.apply(*updated)
	return nil
}

// Rematch starts a new epoch on a finished match: readiness, measurements,
// winner and go signal are cleared, player bindings and room code stay.
func (s *Session) Rematch(ctx context.Context) error {
	match, _, err := s.current()
	if err != nil {
		return err
	}
	updated, err := s.store.Reset(ctx, match.ID)
	if err != nil {
		return err
	}
	s.apply(*updated)
	return nil
}

// LeaveGame is purely local: it drops the subscription, timers and local
// state. The remote record is left untouched so the other participant can
// keep or resume the match.
func (s *Session) LeaveGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}
	s.match = nil
	s.opponent = nil
	s.startPending = false
}

// CurrentMatch returns a copy of the last reconciled snapshot, nil when no
// match is active.
func (s *Session) CurrentMatch() *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.match == nil {
		return nil
	}
	snapshot := *s.match
	return &snapshot
}

// Opponent returns the last fetched opponent profile, nil before a lookup
// completed.
func (s *Session) Opponent() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opponent
}

func (s *Session) current() (*models.Match, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.match == nil {
		return nil, 0, ErrNoActiveMatch
	}
	slot := s.match.Slot(s.userID)
	if slot == 0 {
		return nil, 0, ErrNotParticipant
	}
	snapshot := *s.match
	return &snapshot, slot, nil
}

func (s *Session) watch(ctx context.Context, match *models.Match) error {
	ch, cancel, err := s.feed.Subscribe(ctx, match.ID)
	if err != nil {
		s.logger.Error("failed to subscribe to match feed", zap.Uint("matchID", match.ID), zap.Error(err))
		return ErrStoreUnavailable
	}
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.unsubscribe = cancel
	s.subGen++
	gen := s.subGen
	s.mu.Unlock()

	s.apply(*match)
	go s.reconcile(ch, gen)
	return nil
}

// reconcile consumes the feed until it closes. Duplicate deliveries are
// harmless: apply replaces the snapshot and every derived write is
// idempotent.
func (s *Session) reconcile(ch <-chan models.Match, gen int) {
	for match := range ch {
		s.applyAt(match, gen)
	}
	s.mu.Lock()
	// A newer watch or LeaveGame closed this subscription on purpose;
	// only a feed that dies while still current is transport loss.
	superseded := s.subGen != gen || s.match == nil
	s.mu.Unlock()
	// The last snapshot stays visible (stale beats blank) and the UI is
	// told.
	if !superseded && s.OnError != nil {
		s.OnError(ErrStoreUnavailable)
	}
}

// apply replaces the local snapshot with the given row verbatim — no
// field-level merging — then derives any follow-up actions from it.
func (s *Session) apply(match models.Match) {
	s.applyAt(match, -1)
}

// applyAt drops snapshots from a superseded subscription; gen -1 means the
// caller is a command on the current match, which is always applied.
func (s *Session) applyAt(match models.Match, gen int) {
	s.mu.Lock()
	if gen >= 0 && gen != s.subGen {
		s.mu.Unlock()
		return
	}
	prev := s.match
	snapshot := match
	s.match = &snapshot

	scheduleStart := match.Status == models.MatchReady && match.BothReady() && !s.startPending
	if scheduleStart {
		s.startPending = true
	}
	if match.Status != models.MatchReady {
		// Started/finished, or a stale pre-join row: the pending flag
		// re-arms for the next epoch.
		s.startPending = false
	}

	opponentID := match.OpponentID(s.userID)
	refreshOpponent := opponentID != 0 && (prev == nil || prev.OpponentID(s.userID) != opponentID)

	finishNeeded := match.Status == models.MatchStarted && match.BothRecorded() && match.WinnerID == 0
	s.mu.Unlock()

	if scheduleStart {
		s.scheduleStart(match.ID)
	}
	if refreshOpponent {
		go s.refreshOpponent(opponentID)
	}
	if finishNeeded {
		s.finish(match)
	}
	if s.OnChange != nil {
		s.OnChange(snapshot)
	}
}

func (s *Session) scheduleStart(matchID uint) {
	s.mu.Lock()
	delay := minStartDelay + time.Duration(s.rng.Int63n(int64(maxStartDelay-minStartDelay)+1))
	s.mu.Unlock()

	timer := s.clock.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		// Guarded write: whichever player's timer fires first stamps the
		// go signal, the later attempt matches zero rows.
		if _, err := s.store.Start(ctx, matchID, s.clock.Now().UnixMilli()); err != nil {
			s.logger.Error("failed to start match", zap.Uint("matchID", matchID), zap.Error(err))
		}
	})

	s.mu.Lock()
	s.startTimer = timer
	s.mu.Unlock()
}

func (s *Session) finish(match models.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := s.store.Finish(ctx, match.ID, decideWinner(&match)); err != nil {
		s.logger.Error("failed to finish match", zap.Uint("matchID", match.ID), zap.Error(err))
	}
}

func (s *Session) refreshOpponent(opponentID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	profile, err := s.profiles.Profile(ctx, opponentID)
	if err != nil {
		s.logger.Warn("failed to fetch opponent profile", zap.Uint("opponentID", opponentID), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.opponent = profile
	s.mu.Unlock()
}

// decideWinner picks the strictly lower reaction time. Equal times go to
// player 1 (the room creator) — a fixed rule, never left to database
// update ordering. Pure function of the observed row, so concurrent
// attempts from both clients compute the identical write.
func decideWinner(m *models.Match) uint {
	if m.Player2ReactionMs < m.Player1ReactionMs {
		return m.Player2ID
	}
	return m.Player1ID
}
