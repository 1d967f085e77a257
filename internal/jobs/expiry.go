package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reportlens/securelink-server-go/internal/config"
	"github.com/reportlens/securelink-server-go/internal/repository"
)

// ExpiryJob periodically persists the derived expired state for
// credentials past their TTL (redemption never depends on this; it
// checks expires_at directly) and prunes old fulfillment records.
// Credentials themselves are never deleted.
type ExpiryJob struct {
	credRepo        repository.CredentialRepository
	fulfillmentRepo repository.FulfillmentRepository
	interval        time.Duration
	done            chan struct{}
}

func NewExpiryJob(
	credRepo repository.CredentialRepository,
	fulfillmentRepo repository.FulfillmentRepository,
	interval time.Duration,
) *ExpiryJob {
	return &ExpiryJob{
		credRepo:        credRepo,
		fulfillmentRepo: fulfillmentRepo,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *ExpiryJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("expiry job started")
}

func (j *ExpiryJob) Stop() {
	close(j.done)
	log.Info().Msg("expiry job stopped")
}

func (j *ExpiryJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *ExpiryJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runSweep(ctx, "expired credentials", func(ctx context.Context) (int64, error) {
		return j.credRepo.MarkExpired(ctx)
	})
	j.runSweep(ctx, "stale fulfillments", func(ctx context.Context) (int64, error) {
		return j.fulfillmentRepo.DeleteOlderThan(ctx, time.Now().Add(-config.FulfillmentRetention))
	})
}

func (j *ExpiryJob) runSweep(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to sweep %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("swept %s", name)
	}
}
