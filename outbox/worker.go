package outbox

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const drainBatch = 100

// Worker drains queued triggers to the mailer on a schedule. A trigger
// that fails to send stays queued and is retried next round.
type Worker struct {
	store  Store
	mailer Mailer
	logger *zap.Logger
	cron   *cron.Cron
}

func NewWorker(store Store, mailer Mailer, logger *zap.Logger) *Worker {
	return &Worker{
		store:  store,
		mailer: mailer,
		logger: logger,
		cron:   cron.New(),
	}
}

func (w *Worker) Start() {
	w.cron.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		w.Drain(ctx)
	})
	w.cron.Start()
}

func (w *Worker) Stop() {
	w.cron.Stop()
}

// Drain sends one batch of queued triggers.
func (w *Worker) Drain(ctx context.Context) {
	triggers, err := w.store.Due(ctx, drainBatch)
	if err != nil {
		w.logger.Error("failed to load due email triggers", zap.Error(err))
		return
	}

	for _, trigger := range triggers {
		if err := w.mailer.Send(ctx, trigger.UserID, trigger.TriggerKind); err != nil {
			w.logger.Error("failed to send campaign email",
				zap.Uint("triggerID", trigger.ID), zap.Error(err))
			continue
		}
		if err := w.store.MarkSent(ctx, trigger.ID, time.Now().Unix()); err != nil {
			w.logger.Error("failed to mark email trigger sent",
				zap.Uint("triggerID", trigger.ID), zap.Error(err))
		}
	}
}
