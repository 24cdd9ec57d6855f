package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/evermark/servicedesk-backend/pkg/logger"
)

const (
	// idempotencyRetention keeps terminal records long enough for any
	// plausible client retry window before reclaiming the space.
	idempotencyRetention = 720 * time.Hour

	// idempotencyStaleAfter is how long an in_progress row can sit before it
	// is considered a crash leftover nothing will ever finalize.
	idempotencyStaleAfter = 24 * time.Hour
)

type idempotencyPurgeRepo interface {
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeStaleInProgressBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdempotencyPurgeJobParams configures the idempotency record cleanup.
type IdempotencyPurgeJobParams struct {
	Logger     *logger.Logger
	Repository idempotencyPurgeRepo
	Retention  time.Duration
	StaleAfter time.Duration
}

// NewIdempotencyPurgeJob constructs the idempotency purge cron job.
func NewIdempotencyPurgeJob(params IdempotencyPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("idempotency repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = idempotencyRetention
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = idempotencyStaleAfter
	}
	return &idempotencyPurgeJob{
		logg:       params.Logger,
		repo:       params.Repository,
		retention:  retention,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

type idempotencyPurgeJob struct {
	logg       *logger.Logger
	repo       idempotencyPurgeRepo
	retention  time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func (j *idempotencyPurgeJob) Name() string { return "idempotency-purge" }

func (j *idempotencyPurgeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	terminalCutoff := now.Add(-j.retention)
	staleCutoff := now.Add(-j.staleAfter)

	var runErr error
	terminalRows, err := j.repo.PurgeTerminalBefore(ctx, terminalCutoff)
	if err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("purge terminal records: %w", err))
	}
	staleRows, err := j.repo.PurgeStaleInProgressBefore(ctx, staleCutoff)
	if err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("purge stale in-progress records: %w", err))
	}
	if runErr != nil {
		return runErr
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"terminal_cutoff": terminalCutoff,
		"stale_cutoff":    staleCutoff,
		"terminal_rows":   terminalRows,
		"stale_rows":      staleRows,
	})
	j.logg.Info(logCtx, "idempotency purge complete")
	return nil
}
