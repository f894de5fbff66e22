package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultBatchSize   = 50
	defaultPollEvery   = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	Broker     pinger
	Topics     *topicPublishers
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   eventResolver
}

type pinger interface {
	Ping(context.Context) error
}

// Service drains outbox_events onto Pub/Sub. Each batch is claimed with
// FOR UPDATE SKIP LOCKED inside one transaction, so several publishers can
// run side by side without sending the same row twice.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	broker      pinger
	topics      *topicPublishers
	repo        outboxRepository
	dlq         dlqRepository
	registry    eventResolver
	batchSize   int
	maxAttempts int
	pollEvery   time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("pubsub client is required")
	case params.Topics == nil:
		return nil, errors.New("topic publishers are required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	svc := &Service{
		logg:        params.Logger,
		db:          params.DB,
		broker:      params.Broker,
		topics:      params.Topics,
		repo:        params.Repository,
		dlq:         params.DLQ,
		registry:    params.Registry,
		batchSize:   orDefault(params.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(params.Outbox.MaxAttempts, defaultMaxAttempts),
		pollEvery:   defaultPollEvery,
		now:         time.Now,
	}
	if params.Outbox.PollIntervalMS > 0 {
		svc.pollEvery = time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond
	}
	return svc, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run loops until ctx is canceled. A full batch is followed immediately by the
// next one; an empty batch waits one poll interval; a failed batch backs off.
// Topic publishers are flushed on exit.
func (s *Service) Run(ctx context.Context) error {
	defer s.topics.StopAll()

	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.broker.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	wait := newPollBackoff(s.pollEvery, maxBackoff)
	for ctx.Err() == nil {
		stats, err := s.drainOnce(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			pause = wait.fail()
		case stats.claimed == 0:
			wait.reset()
			pause = wait.idle()
		default:
			wait.reset()
			s.logBatch(ctx, stats)
			continue
		}
		if err := sleepCtx(ctx, pause); err != nil {
			return err
		}
	}
	return ctx.Err()
}

type batchStats struct {
	claimed   int
	published int
	retried   int
	dead      int
}

// drainOnce claims up to batchSize rows and settles every one of them inside
// the claiming transaction.
func (s *Service) drainOnce(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = batchStats{}
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		stats.claimed = len(rows)
		for _, row := range rows {
			d := s.deliver(ctx, row)
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
			switch d.outcome {
			case outcomePublished:
				stats.published++
			case outcomeRetry:
				stats.retried++
			case outcomeDead:
				stats.dead++
			}
		}
		return nil
	})
	return stats, err
}

func (s *Service) logBatch(ctx context.Context, stats batchStats) {
	s.logg.Info(s.logg.WithFields(ctx, logger.Fields{
		"claimed":   stats.claimed,
		"published": stats.published,
		"retried":   stats.retried,
		"dead":      stats.dead,
	}), "outbox batch settled")
}
