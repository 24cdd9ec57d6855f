package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/evermark/servicedesk-backend/pkg/db"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
)

// Outcome is the guard's verdict for one acquire attempt.
type Outcome string

const (
	OutcomeProceed    Outcome = "proceed"
	OutcomeReplay     Outcome = "replay"
	OutcomeConflict   Outcome = "conflict"
	OutcomeInProgress Outcome = "in_progress"
)

// Decision carries the acquire verdict plus the replay payload when present.
type Decision struct {
	Outcome      Outcome
	RecordID     uuid.UUID
	StatusCode   int
	ResponseBody []byte
}

// Service is the DB-backed at-most-once guard. Uniqueness on
// (endpoint, idempotency_key) is the concurrency mechanism; there are no
// application-level locks.
type Service struct {
	repo          Repository
	inProgressTTL time.Duration
	now           func() time.Time
}

// NewService builds the guard with the configured in-progress takeover TTL.
func NewService(repo Repository, inProgressTTL time.Duration) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("idempotency repository required")
	}
	if inProgressTTL <= 0 {
		return nil, fmt.Errorf("in-progress ttl must be positive")
	}
	return &Service{
		repo:          repo,
		inProgressTTL: inProgressTTL,
		now:           time.Now,
	}, nil
}

// Acquire admits, replays, or rejects one execution for (endpoint, key).
//
// State machine per (endpoint, key): absent -> in_progress -> {completed|failed}.
// A different request hash under a known key is a conflict and is never
// executed. A stale in_progress row older than the TTL is reclaimed
// atomically so a crashed execution's retry can proceed.
func (s *Service) Acquire(ctx context.Context, endpoint, key, requestHash string) (*Decision, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "endpoint required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if strings.TrimSpace(requestHash) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request hash required")
	}

	record := &models.IdempotencyRecord{
		ID:             uuid.New(),
		Endpoint:       endpoint,
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         enums.IdempotencyStatusInProgress,
	}
	err := s.repo.Insert(ctx, record)
	if err == nil {
		return &Decision{Outcome: OutcomeProceed, RecordID: record.ID}, nil
	}
	if !dbpkg.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "insert idempotency record")
	}

	existing, err := s.repo.FindByEndpointAndKey(ctx, endpoint, key)
	if err != nil {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load idempotency record")
	}

	if existing.RequestHash != requestHash {
		return &Decision{Outcome: OutcomeConflict, RecordID: existing.ID}, nil
	}

	if existing.Status.IsTerminal() {
		return replayDecision(existing), nil
	}

	cutoff := s.now().Add(-s.inProgressTTL)
	if existing.CreatedAt.Before(cutoff) {
		reclaimed, err := s.repo.TakeoverStale(ctx, existing.ID, requestHash, cutoff, s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "reclaim stale idempotency record")
		}
		if reclaimed {
			return &Decision{Outcome: OutcomeProceed, RecordID: existing.ID}, nil
		}
		// Lost the reclaim race; the winner either finalized or holds the row.
		refreshed, err := s.repo.FindByEndpointAndKey(ctx, endpoint, key)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "reload idempotency record")
		}
		if refreshed != nil && refreshed.Status.IsTerminal() && refreshed.RequestHash == requestHash {
			return replayDecision(refreshed), nil
		}
		return &Decision{Outcome: OutcomeInProgress, RecordID: existing.ID}, nil
	}

	return &Decision{Outcome: OutcomeInProgress, RecordID: existing.ID}, nil
}

// Finalize moves the record to its terminal status, persisting the response
// for future replays.
func (s *Service) Finalize(ctx context.Context, recordID uuid.UUID, statusCode int, responseBody []byte, failed bool) error {
	if recordID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "record id required")
	}
	status := enums.IdempotencyStatusCompleted
	if failed {
		status = enums.IdempotencyStatusFailed
	}
	if err := s.repo.Finalize(ctx, recordID, status, statusCode, responseBody, s.now()); err != nil {
		return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "finalize idempotency record")
	}
	return nil
}

func replayDecision(record *models.IdempotencyRecord) *Decision {
	decision := &Decision{
		Outcome:      OutcomeReplay,
		RecordID:     record.ID,
		ResponseBody: record.ResponseBody,
	}
	if record.StatusCode != nil {
		decision.StatusCode = *record.StatusCode
	}
	return decision
}
