package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
)

func newTestService(t *testing.T) (*Service, Repository) {
	t.Helper()
	db := setupIdempotencyTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, 15*time.Minute)
	require.NoError(t, err)
	return svc, repo
}

func TestAcquireProceedThenReplay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-1", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, first.Outcome)

	require.NoError(t, svc.Finalize(ctx, first.RecordID, 201, []byte(`{"id":"case-1"}`), false))

	second, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-1", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, second.Outcome)
	assert.Equal(t, 201, second.StatusCode)
	assert.Equal(t, []byte(`{"id":"case-1"}`), second.ResponseBody)
}

func TestAcquireConflictOnDifferentHash(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-2", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, first.Outcome)

	conflict, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-2", "hash-b")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, conflict.Outcome)

	// The conflict holds after the original execution finalizes too.
	require.NoError(t, svc.Finalize(ctx, first.RecordID, 200, []byte(`{}`), false))
	conflict, err = svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-2", "hash-b")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, conflict.Outcome)
}

func TestAcquireInProgressBlocksRetry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-3", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, first.Outcome)

	blocked, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-3", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInProgress, blocked.Outcome)
	assert.Equal(t, first.RecordID, blocked.RecordID)
}

func TestAcquireReclaimsStaleInProgress(t *testing.T) {
	db := setupIdempotencyTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, 15*time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-4", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, first.Outcome)

	backdateRecord(t, db, first.RecordID, time.Now().UTC().Add(-time.Hour))

	reclaimed, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-4", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, reclaimed.Outcome)
	assert.Equal(t, first.RecordID, reclaimed.RecordID)

	// Freshly reclaimed, so a concurrent retry is told to back off.
	blocked, err := svc.Acquire(ctx, "POST /api/v1/cases", "svc-key-4", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInProgress, blocked.Outcome)
}

func TestFinalizeFailedReplaysFailure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "POST /api/v1/cases/{caseId}/notify", "svc-key-5", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProceed, first.Outcome)

	require.NoError(t, svc.Finalize(ctx, first.RecordID, 502, []byte(`{"error":"campaign push failed"}`), true))

	replayed, err := svc.Acquire(ctx, "POST /api/v1/cases/{caseId}/notify", "svc-key-5", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, replayed.Outcome)
	assert.Equal(t, 502, replayed.StatusCode)
	assert.Equal(t, []byte(`{"error":"campaign push failed"}`), replayed.ResponseBody)
}

func TestAcquireValidatesInputs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "", "key", "hash")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	_, err = svc.Acquire(ctx, "POST /api/v1/cases", "", "hash")
	require.Error(t, err)

	_, err = svc.Acquire(ctx, "POST /api/v1/cases", "key", "")
	require.Error(t, err)
}

func TestHashBodyIsStable(t *testing.T) {
	a := HashBody([]byte(`{"serial":"SN-1"}`))
	b := HashBody([]byte(`{"serial":"SN-1"}`))
	c := HashBody([]byte(`{"serial":"SN-2"}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
