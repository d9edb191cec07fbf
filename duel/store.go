package duel

import (
	"context"

	"cortexserver/models"
)

// Store is the game record store: the single serialization point for a
// duel. Every mutation is a guarded write against the current row state,
// so concurrent attempts from both players are order-independent in their
// effect. Implementations must publish the updated row to the change feed
// after every successful mutation.
type Store interface {
	// Create inserts a fresh match in "waiting" with player 1 bound.
	// Returns ErrRoomCodeTaken when the code collides.
	Create(ctx context.Context, player1ID uint, roomCode string) (*models.Match, error)

	Get(ctx context.Context, matchID uint) (*models.Match, error)

	// JoinWaiting binds player 2 and moves waiting -> ready. Returns
	// ErrMatchNotFound when the code does not resolve to a waiting match
	// and ErrSelfJoinForbidden when the caller created it.
	JoinWaiting(ctx context.Context, roomCode string, player2ID uint) (*models.Match, error)

	// SetReady sets one player's own readiness flag while the match is in
	// "ready". Wrong-state calls are no-ops returning the current row.
	SetReady(ctx context.Context, matchID uint, slot int) (*models.Match, error)

	// Start moves ready -> started and stamps the go signal. A second
	// attempt never overwrites an existing timestamp; it is a no-op.
	Start(ctx context.Context, matchID uint, startMillis int64) (*models.Match, error)

	// RecordReaction writes one player's own measurement at most once per
	// epoch. Re-recording is a no-op returning the current row.
	RecordReaction(ctx context.Context, matchID uint, slot int, millis int) (*models.Match, error)

	// Finish moves started -> finished with the given winner, guarded on
	// both measurements being present and no winner being set. Both
	// clients may attempt it; only the first write takes effect.
	Finish(ctx context.Context, matchID uint, winnerID uint) (*models.Match, error)

	// Reset starts a new epoch: clears readiness, measurements, winner
	// and start timestamp, returning a finished match to "ready" with
	// both slots still bound.
	Reset(ctx context.Context, matchID uint) (*models.Match, error)
}
