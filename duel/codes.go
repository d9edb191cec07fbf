package duel

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"cortexserver/models"
)

// Room codes are short enough to read aloud; 0/O and 1/I are excluded so
// they survive the trip.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 6

	// Collisions against the unique index are retried here, not surfaced
	// to the player; only an exhausted retry budget becomes an error.
	codeAttempts = 3
)

func NewRoomCode(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rng.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NewLocalRand returns a seeded generator. One per session/connection,
// never shared across goroutines.
func NewLocalRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// CreateWithFreshCode creates a match under a freshly generated room code,
// retrying code generation while the store reports a collision.
func CreateWithFreshCode(ctx context.Context, store Store, rng *rand.Rand, player1ID uint) (*models.Match, error) {
	var lastErr error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		match, err := store.Create(ctx, player1ID, NewRoomCode(rng))
		if err == nil {
			return match, nil
		}
		if !errors.Is(err, ErrRoomCodeTaken) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
