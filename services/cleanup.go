package services

import (
	"context"
	"time"

	"github.com/malwarebo/playgate/utils"
)

// DefaultCleanupInterval is how often expired idempotency records are swept.
const DefaultCleanupInterval = time.Hour

type ExpiredRecordStore interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// IdempotencyJanitor reclaims idempotency records past their expires_at on a
// fixed interval. A failed sweep is logged and retried at the next tick; the
// records are only a replay cache, so nothing downstream depends on a sweep
// landing on time.
type IdempotencyJanitor struct {
	store    ExpiredRecordStore
	interval time.Duration
	logger   *utils.Logger
	stop     chan struct{}
}

func NewIdempotencyJanitor(store ExpiredRecordStore, interval time.Duration) *IdempotencyJanitor {
	return &IdempotencyJanitor{
		store:    store,
		interval: interval,
		logger:   utils.NewLogger("idempotency-janitor"),
		stop:     make(chan struct{}),
	}
}

func (j *IdempotencyJanitor) Start() {
	go j.run()
}

func (j *IdempotencyJanitor) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stop:
			return
		}
	}
}

func (j *IdempotencyJanitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reclaimed, err := j.store.CleanupExpired(ctx)
	if err != nil {
		j.logger.Error(ctx, "idempotency cleanup failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if reclaimed > 0 {
		j.logger.Info(ctx, "expired idempotency records reclaimed", map[string]interface{}{
			"count": reclaimed,
		})
	}
}

func (j *IdempotencyJanitor) Close() {
	close(j.stop)
}
