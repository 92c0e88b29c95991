package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/pkg/logger"
)

const defaultOutboxRetention = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	Retention  time.Duration
	// TerminalAttempts matches the publisher's max attempts; rows at or past
	// it are never retried and can be pruned like published ones.
	TerminalAttempts int
}

// outboxRetentionJob prunes settled order events once they age out.
type outboxRetentionJob struct {
	logg             *logger.Logger
	db               txRunner
	repo             outboxPruner
	retention        time.Duration
	terminalAttempts int
	now              func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.TerminalAttempts <= 0 {
		return nil, fmt.Errorf("terminal attempts must be positive")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		retention:        retention,
		terminalAttempts: params.TerminalAttempts,
		now:              time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteSettledBefore(tx, cutoff, j.terminalAttempts)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention complete")
	return nil
}
