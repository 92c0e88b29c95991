package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront/pkg/logger"
)

type pendingCounter interface {
	CountPending() (int64, error)
}

type backlogGauge interface {
	SetOutboxBacklog(pending int64)
}

type outboxBacklogJob struct {
	logg  *logger.Logger
	repo  pendingCounter
	gauge backlogGauge
}

// NewOutboxBacklogJob reports how many events still wait for the publisher.
func NewOutboxBacklogJob(logg *logger.Logger, repo pendingCounter, gauge backlogGauge) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return &outboxBacklogJob{logg: logg, repo: repo, gauge: gauge}, nil
}

func (j *outboxBacklogJob) Name() string { return "outbox-backlog" }

func (j *outboxBacklogJob) Run(ctx context.Context) error {
	pending, err := j.repo.CountPending()
	if err != nil {
		return fmt.Errorf("count pending outbox rows: %w", err)
	}
	if j.gauge != nil {
		j.gauge.SetOutboxBacklog(pending)
	}
	logCtx := j.logg.WithField(ctx, "pending", pending)
	if pending > 0 {
		j.logg.Warn(logCtx, "outbox backlog")
		return nil
	}
	j.logg.Debug(logCtx, "outbox drained")
	return nil
}
