package duel

import (
	"context"
	"encoding/json"
	"time"

	"cortexserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Feed delivers full match snapshots whenever the stored row changes.
// Delivery is at-least-once and ordered per match; consumers must treat
// duplicate snapshots as no-ops. A closed channel means the subscription
// is gone for good (cancelled, or transport retries exhausted).
type Feed interface {
	Subscribe(ctx context.Context, matchID uint) (<-chan models.Match, func(), error)
}

// RedisFeed subscribes to the per-match pub/sub channel the store
// publishes to. Transport failures trigger automatic resubscription with
// backoff; only repeated failure gives up and closes the channel.
type RedisFeed struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, logger: logger}
}

const maxSubscribeFailures = 5

func (f *RedisFeed) Subscribe(ctx context.Context, matchID uint) (<-chan models.Match, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan models.Match, 8)
	go f.pump(subCtx, matchID, out)
	return out, cancel, nil
}

func (f *RedisFeed) pump(ctx context.Context, matchID uint, out chan<- models.Match) {
	defer close(out)
	failures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := f.rdb.Subscribe(ctx, matchChannel(matchID))
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			failures++
			if failures >= maxSubscribeFailures {
				f.logger.Error("giving up on match feed", zap.Uint("matchID", matchID), zap.Error(err))
				return
			}
			f.logger.Warn("match feed subscribe failed, retrying",
				zap.Uint("matchID", matchID), zap.Int("failures", failures), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(failures) * time.Second):
			}
			continue
		}
		failures = 0

		if !f.receive(ctx, matchID, pubsub, out) {
			pubsub.Close()
			return
		}
		// The message channel closed underneath us; resubscribe.
		pubsub.Close()
		failures++
		if failures >= maxSubscribeFailures {
			f.logger.Error("giving up on match feed", zap.Uint("matchID", matchID))
			return
		}
	}
}

// receive forwards messages until the subscription breaks. It returns
// false when the pump should stop entirely, true to resubscribe.
func (f *RedisFeed) receive(ctx context.Context, matchID uint, pubsub *redis.PubSub, out chan<- models.Match) bool {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-ch:
			if !ok {
				return true
			}
			var match models.Match
			if err := json.Unmarshal([]byte(msg.Payload), &match); err != nil {
				f.logger.Error("dropping undecodable match snapshot",
					zap.Uint("matchID", matchID), zap.Error(err))
				continue
			}
			select {
			case out <- match:
			case <-ctx.Done():
				return false
			}
		}
	}
}
