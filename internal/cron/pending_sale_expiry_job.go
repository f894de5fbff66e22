package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const maxExpiryRounds = 20

// PendingSaleExpiryJobParams configure the job that cancels stale storefront orders.
type PendingSaleExpiryJobParams struct {
	Logger *logger.Logger
	Sales  pendingSaleExpirer
	TTL    time.Duration
}

type pendingSaleExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

// NewPendingSaleExpiryJob returns nil when TTL is not positive; the registry
// skips nil jobs.
func NewPendingSaleExpiryJob(params PendingSaleExpiryJobParams) (Job, error) {
	if params.TTL <= 0 {
		return nil, nil
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales service required")
	}
	return &pendingSaleExpiryJob{
		logg:  params.Logger,
		sales: params.Sales,
		ttl:   params.TTL,
		now:   time.Now,
	}, nil
}

type pendingSaleExpiryJob struct {
	logg  *logger.Logger
	sales pendingSaleExpirer
	ttl   time.Duration
	now   func() time.Time
}

func (j *pendingSaleExpiryJob) Name() string { return "pending-sale-expiry" }

func (j *pendingSaleExpiryJob) Run(ctx context.Context) (Result, error) {
	ctx = outbox.WithActor(ctx, outbox.SystemActor())
	cutoff := j.now().UTC().Add(-j.ttl)

	total := 0
	for round := 0; round < maxExpiryRounds; round++ {
		n, err := j.sales.ExpirePending(ctx, cutoff)
		if err != nil {
			return Result{Affected: int64(total)}, fmt.Errorf("expire pending sales: %w", err)
		}
		total += n
		if n == 0 {
			break
		}
	}

	j.logg.Debug(j.logg.WithFields(ctx, logger.Fields{
		"cutoff":        cutoff,
		"ttl":           j.ttl.String(),
		"sales_expired": total,
	}), "pending sales expired")
	return Result{Affected: int64(total)}, nil
}
