package serials

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
	"github.com/evermark/servicedesk-backend/pkg/outbox"
	"github.com/evermark/servicedesk-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes registry upserts and the append-only event log.
type Service interface {
	UpsertTx(ctx context.Context, tx *gorm.DB, input UpsertInput) (*models.SerialRegistry, error)
	AppendEventTx(ctx context.Context, tx *gorm.DB, input AppendEventInput) (*models.SerialServiceEvent, error)
	AppendEvent(ctx context.Context, serialNumber string, input AppendEventInput) (*models.SerialServiceEvent, error)
	History(ctx context.Context, serialNumber string) (*History, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds a serials service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("serials repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outbox,
		now:    time.Now,
	}, nil
}

// UpsertTx creates the registry row on first touch or bumps rma_count on
// every later one. Insert-then-increment keeps concurrent intakes race-safe:
// the loser of the unique-constraint race falls back to the increment path.
func (s *service) UpsertTx(ctx context.Context, tx *gorm.DB, input UpsertInput) (*models.SerialRegistry, error) {
	serial := NormalizeSerial(input.SerialNumber)
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial number required")
	}

	repo := s.repo.WithTx(tx)
	touchedAt := input.TouchedAt
	if touchedAt.IsZero() {
		touchedAt = s.now()
	}

	registry := &models.SerialRegistry{
		ID:              uuid.New(),
		SerialNumber:    serial,
		Brand:           nonEmpty(input.Brand),
		Model:           nonEmpty(input.Model),
		InventoryItemID: input.InventoryItemID,
		RmaCount:        1,
		FirstSeenAt:     touchedAt,
		LastRmaAt:       &touchedAt,
	}
	err := repo.Create(ctx, registry)
	if err == nil {
		return registry, nil
	}
	if !dbpkg.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "create serial registry")
	}

	rows, err := repo.IncrementTouch(ctx, serial, TouchUpdate{
		LastRmaAt:       touchedAt,
		Brand:           nonEmpty(input.Brand),
		Model:           nonEmpty(input.Model),
		InventoryItemID: input.InventoryItemID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "increment serial registry")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "serial registry vanished during upsert")
	}

	refreshed, err := repo.FindBySerial(ctx, serial)
	if err != nil {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "reload serial registry")
	}
	return refreshed, nil
}

// AppendEventTx inserts one timeline entry after checking the registry exists.
func (s *service) AppendEventTx(ctx context.Context, tx *gorm.DB, input AppendEventInput) (*models.SerialServiceEvent, error) {
	if input.RegistryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "registry id required")
	}
	if strings.TrimSpace(input.Summary) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event summary required")
	}
	if !input.EventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.FindByID(ctx, input.RegistryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "serial registry not found")
		}
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load serial registry")
	}

	event := &models.SerialServiceEvent{
		ID:               uuid.New(),
		SerialRegistryID: input.RegistryID,
		RmaCaseID:        input.RmaCaseID,
		EventType:        input.EventType,
		Summary:          input.Summary,
		Notes:            input.Notes,
		Metadata:         input.Metadata,
		CreatedBy:        input.CreatedBy,
	}
	if err := repo.InsertEvent(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "insert service event")
	}
	return event, nil
}

// AppendEvent resolves the serial, inserts the entry, and mirrors it to the
// outbox in one transaction.
func (s *service) AppendEvent(ctx context.Context, serialNumber string, input AppendEventInput) (*models.SerialServiceEvent, error) {
	serial := NormalizeSerial(serialNumber)
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial number required")
	}

	var created *models.SerialServiceEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		registry, err := repo.FindBySerial(ctx, serial)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "serial not found")
			}
			return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load serial registry")
		}

		input.RegistryID = registry.ID
		created, err = s.AppendEventTx(ctx, tx, input)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventServiceEventAppended,
			AggregateType: enums.AggregateSerialRegistry,
			AggregateID:   registry.ID,
			Version:       1,
			Actor:         buildActor(input.CreatedBy),
			Data: payloads.ServiceEventAppendedEvent{
				SerialRegistryID: registry.ID,
				SerialNumber:     registry.SerialNumber,
				EventID:          created.ID,
				EventType:        created.EventType,
				RmaCaseID:        created.RmaCaseID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// History returns the registry plus its events ordered newest-first.
func (s *service) History(ctx context.Context, serialNumber string) (*History, error) {
	serial := NormalizeSerial(serialNumber)
	if serial == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "serial number required")
	}

	registry, err := s.repo.FindBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "serial not found")
		}
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load serial registry")
	}

	events, err := s.repo.ListEventsByRegistry(ctx, registry.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "list service events")
	}

	return &History{
		Registry: *registry,
		Events:   events,
	}, nil
}

func buildActor(email *string) *outbox.ActorRef {
	if email == nil || strings.TrimSpace(*email) == "" {
		return nil
	}
	return &outbox.ActorRef{Email: *email}
}

func nonEmpty(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return value
}
