package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evermark/servicedesk-backend/pkg/logger"
)

func TestIdempotencyPurgeJobUsesDefaultCutoffs(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	repo := &fakeIdempotencyPurgeRepo{}
	job := newIdempotencyPurgeJob(t, repo, 0, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.terminalCalls != 1 || repo.staleCalls != 1 {
		t.Fatalf("expected one call each, got terminal=%d stale=%d", repo.terminalCalls, repo.staleCalls)
	}
	if want := now.Add(-idempotencyRetention); !repo.terminalCutoff.Equal(want) {
		t.Fatalf("terminal cutoff = %s, want %s", repo.terminalCutoff, want)
	}
	if want := now.Add(-idempotencyStaleAfter); !repo.staleCutoff.Equal(want) {
		t.Fatalf("stale cutoff = %s, want %s", repo.staleCutoff, want)
	}
}

func TestIdempotencyPurgeJobHonorsConfiguredWindows(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	repo := &fakeIdempotencyPurgeRepo{}
	job := newIdempotencyPurgeJob(t, repo, 48*time.Hour, time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-48 * time.Hour); !repo.terminalCutoff.Equal(want) {
		t.Fatalf("terminal cutoff = %s, want %s", repo.terminalCutoff, want)
	}
	if want := now.Add(-time.Hour); !repo.staleCutoff.Equal(want) {
		t.Fatalf("stale cutoff = %s, want %s", repo.staleCutoff, want)
	}
}

func TestIdempotencyPurgeJobRunsBothPurgesDespiteErrors(t *testing.T) {
	repo := &fakeIdempotencyPurgeRepo{
		terminalErr: errors.New("terminal purge failed"),
		staleErr:    errors.New("stale purge failed"),
	}
	job := newIdempotencyPurgeJob(t, repo, 0, 0)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if repo.terminalCalls != 1 || repo.staleCalls != 1 {
		t.Fatalf("both purges must run, got terminal=%d stale=%d", repo.terminalCalls, repo.staleCalls)
	}
}

func newIdempotencyPurgeJob(t *testing.T, repo *fakeIdempotencyPurgeRepo, retention, staleAfter time.Duration) *idempotencyPurgeJob {
	t.Helper()
	jobIface, err := NewIdempotencyPurgeJob(IdempotencyPurgeJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		Retention:  retention,
		StaleAfter: staleAfter,
	})
	if err != nil {
		t.Fatalf("NewIdempotencyPurgeJob: %v", err)
	}
	job, ok := jobIface.(*idempotencyPurgeJob)
	if !ok {
		t.Fatalf("expected idempotencyPurgeJob, got %T", jobIface)
	}
	return job
}

type fakeIdempotencyPurgeRepo struct {
	terminalCutoff time.Time
	staleCutoff    time.Time
	terminalCalls  int
	staleCalls     int
	terminalErr    error
	staleErr       error
}

func (f *fakeIdempotencyPurgeRepo) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.terminalCalls++
	f.terminalCutoff = cutoff
	if f.terminalErr != nil {
		return 0, f.terminalErr
	}
	return 3, nil
}

func (f *fakeIdempotencyPurgeRepo) PurgeStaleInProgressBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.staleCalls++
	f.staleCutoff = cutoff
	if f.staleErr != nil {
		return 0, f.staleErr
	}
	return 1, nil
}
