package rma

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/internal/serials"
	dbpkg "github.com/evermark/servicedesk-backend/pkg/db"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/outbox"
	"github.com/evermark/servicedesk-backend/pkg/outbox/payloads"
	"github.com/evermark/servicedesk-backend/pkg/pagination"
	"github.com/evermark/servicedesk-backend/pkg/ticketing"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

const supportTicketErrorLimit = 512

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// registryService is the slice of the serials service the case flows need.
type registryService interface {
	UpsertTx(ctx context.Context, tx *gorm.DB, input serials.UpsertInput) (*models.SerialRegistry, error)
	AppendEventTx(ctx context.Context, tx *gorm.DB, input serials.AppendEventInput) (*models.SerialServiceEvent, error)
	History(ctx context.Context, serialNumber string) (*serials.History, error)
}

// ticketCreator pushes a support ticket to the external desk.
type ticketCreator interface {
	CreateTicket(ctx context.Context, req ticketing.CreateTicketRequest) (*ticketing.Ticket, error)
}

// inventoryFinder validates catalog links and enriches the detail view.
type inventoryFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
}

// Service exposes the RMA case lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateCaseInput) (*CreateCaseResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCaseInput) (*models.RmaCase, error)
	Get(ctx context.Context, id uuid.UUID) (*CaseDetail, error)
	List(ctx context.Context, filter ListFilter) (*CaseList, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	registry  registryService
	tickets   ticketCreator
	inventory inventoryFinder
	logg      *logger.Logger
	slaDue    time.Duration
	now       func() time.Time
}

// NewService builds an RMA case service with the required dependencies.
// The logger is optional.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	registry registryService,
	tickets ticketCreator,
	inventory inventoryFinder,
	logg *logger.Logger,
	slaDue time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rma repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry service required")
	}
	if tickets == nil {
		return nil, fmt.Errorf("ticket creator required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if slaDue <= 0 {
		return nil, fmt.Errorf("sla due duration must be positive")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		registry:  registry,
		tickets:   tickets,
		inventory: inventory,
		logg:      logg,
		slaDue:    slaDue,
		now:       time.Now,
	}, nil
}

// Create opens a case, or returns the matching open case when the intake is
// a duplicate. Case row, registry upsert, opening service event, and outbox
// event land in one transaction; the optional support ticket is pushed after
// commit and its outcome persisted without ever failing the create.
func (s *service) Create(ctx context.Context, input CreateCaseInput) (*CreateCaseResult, error) {
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid case source")
	}
	customerName := strings.TrimSpace(input.CustomerName)
	if customerName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	customerEmail := strings.TrimSpace(input.CustomerEmail)
	if customerEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if !strings.Contains(customerEmail, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email invalid")
	}
	issueSummary := strings.TrimSpace(input.IssueSummary)
	if issueSummary == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "issue summary required")
	}

	priority := enums.RmaPriorityNormal
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority")
		}
		priority = *input.Priority
	}
	warranty := enums.WarrantyStatusUnknown
	if input.WarrantyStatus != nil {
		if !input.WarrantyStatus.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid warranty status")
		}
		warranty = *input.WarrantyStatus
	}

	if input.InventoryItemID != nil {
		if err := s.ensureInventoryItem(ctx, *input.InventoryItemID); err != nil {
			return nil, err
		}
	}

	serial := ""
	if input.SerialNumber != nil {
		serial = serials.NormalizeSerial(*input.SerialNumber)
	}
	orderID := trimmed(input.OrderID)
	shopifyReturnID := trimmed(input.ShopifyReturnID)

	var result CreateCaseResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := s.findDuplicate(ctx, repo, shopifyReturnID, orderID, serial)
		if err != nil {
			return err
		}
		if existing != nil {
			result = CreateCaseResult{Case: existing, Deduped: true}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCaseDeduped,
				AggregateType: enums.AggregateRmaCase,
				AggregateID:   existing.ID,
				Version:       1,
				Actor:         buildActor(input.ActorEmail, input.Source),
				Data: payloads.CaseDedupedEvent{
					CaseID:          existing.ID,
					Source:          input.Source,
					SerialNumber:    nilIfEmpty(serial),
					ShopifyReturnID: nilIfEmpty(shopifyReturnID),
				},
			})
		}

		now := s.now().UTC()
		slaDueAt := now.Add(s.slaDue)

		rmaCase := &models.RmaCase{
			ID:                      uuid.New(),
			Status:                  enums.RmaCaseStatusReceived,
			Priority:                priority,
			WarrantyStatus:          warranty,
			Source:                  input.Source,
			CustomerName:            &customerName,
			CustomerEmail:           &customerEmail,
			CustomerPhone:           trimmedPtr(input.CustomerPhone),
			OrderID:                 nilIfEmpty(orderID),
			OrderName:               trimmedPtr(input.OrderName),
			IssueSummary:            &issueSummary,
			IssueDetails:            input.IssueDetails,
			AssignedTechnicianEmail: trimmedPtr(input.AssignedTechnicianEmail),
			InventoryItemID:         input.InventoryItemID,
			ShopifyReturnID:         nilIfEmpty(shopifyReturnID),
			SlaDueAt:                &slaDueAt,
		}
		if serial != "" {
			rmaCase.SerialNumber = &serial
			registry, err := s.registry.UpsertTx(ctx, tx, serials.UpsertInput{
				SerialNumber:    serial,
				Brand:           input.Brand,
				Model:           input.Model,
				InventoryItemID: input.InventoryItemID,
				TouchedAt:       now,
			})
			if err != nil {
				return err
			}
			rmaCase.SerialRegistryID = &registry.ID
			if rmaCase.InventoryItemID == nil {
				rmaCase.InventoryItemID = registry.InventoryItemID
			}
		}

		if err := repo.Create(ctx, rmaCase); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_rma_cases_shopify_return_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a case for this return already exists")
			}
			return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "create rma case")
		}

		if rmaCase.SerialRegistryID != nil {
			summary := fmt.Sprintf("RMA case opened (%s)", input.Source)
			if _, err := s.registry.AppendEventTx(ctx, tx, serials.AppendEventInput{
				RegistryID: *rmaCase.SerialRegistryID,
				RmaCaseID:  &rmaCase.ID,
				EventType:  enums.ServiceEventTypeReceived,
				Summary:    summary,
				CreatedBy:  input.ActorEmail,
			}); err != nil {
				return err
			}
		}

		result = CreateCaseResult{Case: rmaCase}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCaseCreated,
			AggregateType: enums.AggregateRmaCase,
			AggregateID:   rmaCase.ID,
			Version:       1,
			Actor:         buildActor(input.ActorEmail, input.Source),
			Data: payloads.CaseCreatedEvent{
				CaseID:       rmaCase.ID,
				Source:       rmaCase.Source,
				Status:       rmaCase.Status,
				Priority:     rmaCase.Priority,
				SerialNumber: rmaCase.SerialNumber,
				OrderID:      rmaCase.OrderID,
				SlaDueAt:     rmaCase.SlaDueAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if input.OpenSupportTicket && !result.Deduped {
		s.pushSupportTicket(ctx, result.Case, customerEmail, issueSummary)
	}
	return &result, nil
}

// ensureInventoryItem confirms a catalog link points at a real item.
func (s *service) ensureInventoryItem(ctx context.Context, id uuid.UUID) error {
	if _, err := s.inventory.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown inventory item")
		}
		return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load inventory item")
	}
	return nil
}

// findDuplicate returns an open case matching the intake's dedupe keys.
func (s *service) findDuplicate(ctx context.Context, repo Repository, shopifyReturnID, orderID, serial string) (*models.RmaCase, error) {
	if shopifyReturnID != "" {
		existing, err := repo.FindOpenByShopifyReturnID(ctx, shopifyReturnID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "dedupe by return id")
		}
	}
	if orderID != "" && serial != "" {
		existing, err := repo.FindOpenByOrderAndSerial(ctx, orderID, serial)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "dedupe by order and serial")
		}
	}
	return nil, nil
}

// pushSupportTicket runs after the create transaction committed. The remote
// call is best-effort: its outcome lands on the case row either way.
func (s *service) pushSupportTicket(ctx context.Context, rmaCase *models.RmaCase, customerEmail, issueSummary string) {
	ticket, pushErr := s.tickets.CreateTicket(ctx, ticketing.CreateTicketRequest{
		Subject:       fmt.Sprintf("RMA: %s", issueSummary),
		Content:       supportTicketContent(rmaCase),
		CaseID:        rmaCase.ID.String(),
		Priority:      ticketPriority(rmaCase.Priority),
		CustomerEmail: customerEmail,
	})
	if pushErr == nil && ticket == nil {
		pushErr = pkgerrors.New(pkgerrors.CodeDependency, "ticketing returned no ticket")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if pushErr != nil {
			msg := pushErr.Error()
			if len(msg) > supportTicketErrorLimit {
				msg = msg[:supportTicketErrorLimit]
			}
			if err := repo.Update(ctx, rmaCase.ID, map[string]any{"support_ticket_error": msg}); err != nil {
				return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "persist ticket error")
			}
			rmaCase.SupportTicketError = &msg
		} else {
			if err := repo.Update(ctx, rmaCase.ID, map[string]any{"support_ticket_id": ticket.ID}); err != nil {
				return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "persist ticket id")
			}
			rmaCase.SupportTicketID = &ticket.ID
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSupportTicketRequested,
			AggregateType: enums.AggregateRmaCase,
			AggregateID:   rmaCase.ID,
			Version:       1,
			Data: payloads.SupportTicketRequestedEvent{
				CaseID:          rmaCase.ID,
				SupportTicketID: rmaCase.SupportTicketID,
				Failed:          pushErr != nil,
			},
		})
	})

	if s.logg != nil {
		logCtx := s.logg.WithCaseID(ctx, rmaCase.ID.String())
		if pushErr != nil {
			s.logg.Error(logCtx, "support ticket push failed", pushErr)
		}
		if err != nil {
			s.logg.Error(logCtx, "persist support ticket outcome", err)
		}
	}
}

// Update merges the permitted fields, re-links the registry when the serial
// changed, applies tracking automation, and mirrors the outcome to the
// service event log and the outbox.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateCaseInput) (*models.RmaCase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "case id required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if input.Priority != nil && !input.Priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority")
	}
	if input.WarrantyStatus != nil && !input.WarrantyStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid warranty status")
	}
	if input.RepairCost != nil && input.RepairCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repair cost cannot be negative")
	}
	if input.InventoryItemID != nil {
		if err := s.ensureInventoryItem(ctx, *input.InventoryItemID); err != nil {
			return nil, err
		}
	}

	var updated *models.RmaCase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		prior, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "case not found")
			}
			return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load case")
		}

		now := s.now().UTC()
		updates := map[string]any{}
		registryID := prior.SerialRegistryID

		if err := mergeIdentityFields(updates, input); err != nil {
			return err
		}
		mergeTrackingFields(updates, input)
		mergeTimestampFields(updates, input)

		if input.SerialNumber != nil {
			newRegistryID, err := s.relinkRegistry(ctx, tx, updates, prior, *input.SerialNumber, input.InventoryItemID, now)
			if err != nil {
				return err
			}
			registryID = newRegistryID
		}

		var eff Effect
		if trackingTouched(input) {
			eff = Derive(snapshotOf(prior), trackingChangeOf(input), now)
			applyEffect(updates, eff)
		}

		finalStatus := prior.Status
		if value, ok := updates["status"]; ok {
			finalStatus = value.(enums.RmaCaseStatus)
		}
		statusChanged := finalStatus != prior.Status

		// closed_at tracks the terminal status in both directions.
		if finalStatus == enums.RmaCaseStatusBackToCustomer {
			if prior.ClosedAt == nil {
				if _, ok := updates["closed_at"]; !ok {
					updates["closed_at"] = now
				}
			}
		} else if prior.ClosedAt != nil {
			updates["closed_at"] = nil
		}

		if len(updates) == 0 {
			updated = prior
			return nil
		}

		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "update case")
		}

		if eff.Fired() && registryID != nil {
			eventType := enums.ServiceEventTypeServiceNote
			if statusChanged {
				eventType = enums.ServiceEventTypeForStatus(finalStatus)
			}
			metadata := types.JSONMap{
				"applied_fields": eff.AppliedFields(),
				"leg":            eff.Leg(),
			}
			if _, err := s.registry.AppendEventTx(ctx, tx, serials.AppendEventInput{
				RegistryID: *registryID,
				RmaCaseID:  &prior.ID,
				EventType:  eventType,
				Summary:    "tracking automation: " + strings.Join(eff.Notes, "; "),
				Metadata:   &metadata,
				CreatedBy:  input.ActorEmail,
			}); err != nil {
				return err
			}
		}

		actor := buildActor(input.ActorEmail, "")
		changed := changedColumns(updates)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCaseUpdated,
			AggregateType: enums.AggregateRmaCase,
			AggregateID:   prior.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.CaseUpdatedEvent{
				CaseID:        prior.ID,
				ChangedFields: changed,
			},
		}); err != nil {
			return err
		}
		if statusChanged {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCaseStatusChanged,
				AggregateType: enums.AggregateRmaCase,
				AggregateID:   prior.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.CaseStatusChangedEvent{
					CaseID:     prior.ID,
					FromStatus: prior.Status,
					ToStatus:   finalStatus,
					ChangedAt:  now,
				},
			}); err != nil {
				return err
			}
		}
		if eff.Fired() {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTrackingAutomationFired,
				AggregateType: enums.AggregateRmaCase,
				AggregateID:   prior.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.TrackingAutomationFiredEvent{
					CaseID:        prior.ID,
					Leg:           eff.Leg(),
					FromStatus:    prior.Status,
					ToStatus:      eff.Status,
					AppliedFields: eff.AppliedFields(),
				},
			}); err != nil {
				return err
			}
		}

		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(dbpkg.StorageCode(err), err, "reload case")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns the case plus its registry and full event history.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*CaseDetail, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "case id required")
	}
	rmaCase, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "case not found")
		}
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load case")
	}

	detail := &CaseDetail{Case: *rmaCase}
	if rmaCase.InventoryItemID != nil {
		item, err := s.inventory.FindByID(ctx, *rmaCase.InventoryItemID)
		switch {
		case err == nil:
			detail.Item = item
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load inventory item")
		}
	}
	if rmaCase.SerialNumber != nil {
		history, err := s.registry.History(ctx, *rmaCase.SerialNumber)
		if err != nil {
			if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeNotFound {
				return detail, nil
			}
			return nil, err
		}
		detail.Registry = &history.Registry
		detail.Events = history.Events
	}
	return detail, nil
}

// List returns one page of cases with a total count.
func (s *service) List(ctx context.Context, filter ListFilter) (*CaseList, error) {
	params := pagination.Params{Offset: filter.Offset, Limit: filter.Limit}.Normalize()
	filter.Offset = params.Offset
	filter.Limit = params.Limit
	if filter.SerialNumber != nil {
		normalized := serials.NormalizeSerial(*filter.SerialNumber)
		filter.SerialNumber = &normalized
	}

	cases, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "list cases")
	}
	page := pagination.NewPage(params, total)
	return &CaseList{
		Cases:   cases,
		Total:   page.Total,
		Offset:  page.Offset,
		Limit:   page.Limit,
		HasMore: page.HasMore,
	}, nil
}

// mergeIdentityFields applies the non-tracking text and enum fields.
// Identity fields required at create cannot be cleared.
func mergeIdentityFields(updates map[string]any, input UpdateCaseInput) error {
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Priority != nil {
		updates["priority"] = *input.Priority
	}
	if input.WarrantyStatus != nil {
		updates["warranty_status"] = *input.WarrantyStatus
	}
	if input.CustomerName != nil {
		name := strings.TrimSpace(*input.CustomerName)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "customer name cannot be cleared")
		}
		updates["customer_name"] = name
	}
	if input.CustomerEmail != nil {
		email := strings.TrimSpace(*input.CustomerEmail)
		if email == "" || !strings.Contains(email, "@") {
			return pkgerrors.New(pkgerrors.CodeValidation, "customer email invalid")
		}
		updates["customer_email"] = email
	}
	if input.IssueSummary != nil {
		summary := strings.TrimSpace(*input.IssueSummary)
		if summary == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "issue summary cannot be cleared")
		}
		updates["issue_summary"] = summary
	}
	if input.CustomerPhone != nil {
		updates["customer_phone"] = nullableText(*input.CustomerPhone)
	}
	if input.OrderID != nil {
		updates["order_id"] = nullableText(*input.OrderID)
	}
	if input.OrderName != nil {
		updates["order_name"] = nullableText(*input.OrderName)
	}
	if input.IssueDetails != nil {
		updates["issue_details"] = nullableText(*input.IssueDetails)
	}
	if input.ArrivalConditionReport != nil {
		updates["arrival_condition_report"] = nullableText(*input.ArrivalConditionReport)
	}
	if input.AssignedTechnicianEmail != nil {
		updates["assigned_technician_email"] = nullableText(*input.AssignedTechnicianEmail)
	}
	if input.InventoryItemID != nil {
		updates["inventory_item_id"] = *input.InventoryItemID
	}
	if input.RepairCost != nil {
		updates["repair_cost"] = *input.RepairCost
	}
	if input.SlaDueAt != nil {
		updates["sla_due_at"] = *input.SlaDueAt
	}
	return nil
}

func mergeTrackingFields(updates map[string]any, input UpdateCaseInput) {
	if input.InboundCarrier != nil {
		updates["inbound_carrier"] = nullableText(*input.InboundCarrier)
	}
	if input.InboundTrackingNumber != nil {
		updates["inbound_tracking_number"] = nullableText(*input.InboundTrackingNumber)
	}
	if input.InboundTrackingURL != nil {
		updates["inbound_tracking_url"] = nullableText(*input.InboundTrackingURL)
	}
	if input.InboundStatus != nil {
		updates["inbound_status"] = nullableText(*input.InboundStatus)
	}
	if input.OutboundCarrier != nil {
		updates["outbound_carrier"] = nullableText(*input.OutboundCarrier)
	}
	if input.OutboundTrackingNumber != nil {
		updates["outbound_tracking_number"] = nullableText(*input.OutboundTrackingNumber)
	}
	if input.OutboundTrackingURL != nil {
		updates["outbound_tracking_url"] = nullableText(*input.OutboundTrackingURL)
	}
	if input.OutboundStatus != nil {
		updates["outbound_status"] = nullableText(*input.OutboundStatus)
	}
}

func mergeTimestampFields(updates map[string]any, input UpdateCaseInput) {
	if input.ReceivedAt != nil {
		updates["received_at"] = *input.ReceivedAt
	}
	if input.InspectedAt != nil {
		updates["inspected_at"] = *input.InspectedAt
	}
	if input.ShippedBackAt != nil {
		updates["shipped_back_at"] = *input.ShippedBackAt
	}
	if input.DeliveredBackAt != nil {
		updates["delivered_back_at"] = *input.DeliveredBackAt
	}
}

// relinkRegistry handles a serial change on an existing case: clearing drops
// the link, a new value upserts the registry and points the case at it.
func (s *service) relinkRegistry(
	ctx context.Context,
	tx *gorm.DB,
	updates map[string]any,
	prior *models.RmaCase,
	rawSerial string,
	inventoryItemID *uuid.UUID,
	now time.Time,
) (*uuid.UUID, error) {
	serial := serials.NormalizeSerial(rawSerial)
	if serial == "" {
		if prior.SerialNumber != nil {
			updates["serial_number"] = nil
			updates["serial_registry_id"] = nil
		}
		return nil, nil
	}
	if prior.SerialNumber != nil && *prior.SerialNumber == serial {
		return prior.SerialRegistryID, nil
	}

	registry, err := s.registry.UpsertTx(ctx, tx, serials.UpsertInput{
		SerialNumber:    serial,
		InventoryItemID: inventoryItemID,
		TouchedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	updates["serial_number"] = serial
	updates["serial_registry_id"] = registry.ID
	return &registry.ID, nil
}

func trackingTouched(input UpdateCaseInput) bool {
	return input.InboundCarrier != nil || input.InboundTrackingNumber != nil ||
		input.InboundTrackingURL != nil || input.InboundStatus != nil ||
		input.OutboundCarrier != nil || input.OutboundTrackingNumber != nil ||
		input.OutboundTrackingURL != nil || input.OutboundStatus != nil
}

func snapshotOf(prior *models.RmaCase) Snapshot {
	return Snapshot{
		Status:                 prior.Status,
		InboundTrackingNumber:  deref(prior.InboundTrackingNumber),
		InboundStatus:          deref(prior.InboundStatus),
		OutboundTrackingNumber: deref(prior.OutboundTrackingNumber),
		OutboundStatus:         deref(prior.OutboundStatus),
		ReceivedAt:             prior.ReceivedAt,
		InspectedAt:            prior.InspectedAt,
		ShippedBackAt:          prior.ShippedBackAt,
		DeliveredBackAt:        prior.DeliveredBackAt,
		ClosedAt:               prior.ClosedAt,
	}
}

func trackingChangeOf(input UpdateCaseInput) TrackingChange {
	return TrackingChange{
		Status:                 input.Status,
		ReceivedAt:             input.ReceivedAt,
		InspectedAt:            input.InspectedAt,
		ShippedBackAt:          input.ShippedBackAt,
		DeliveredBackAt:        input.DeliveredBackAt,
		InboundTrackingNumber:  input.InboundTrackingNumber,
		InboundStatus:          input.InboundStatus,
		OutboundTrackingNumber: input.OutboundTrackingNumber,
		OutboundStatus:         input.OutboundStatus,
	}
}

func applyEffect(updates map[string]any, eff Effect) {
	if eff.Status != nil {
		updates["status"] = *eff.Status
	}
	if eff.ReceivedAt != nil {
		updates["received_at"] = *eff.ReceivedAt
	}
	if eff.InspectedAt != nil {
		updates["inspected_at"] = *eff.InspectedAt
	}
	if eff.ShippedBackAt != nil {
		updates["shipped_back_at"] = *eff.ShippedBackAt
	}
	if eff.DeliveredBackAt != nil {
		updates["delivered_back_at"] = *eff.DeliveredBackAt
	}
	if eff.ClosedAt != nil {
		updates["closed_at"] = *eff.ClosedAt
	}
}

func changedColumns(updates map[string]any) []string {
	changed := make([]string, 0, len(updates))
	for column := range updates {
		changed = append(changed, column)
	}
	sort.Strings(changed)
	return changed
}

func supportTicketContent(rmaCase *models.RmaCase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RMA case %s\n", rmaCase.ID)
	fmt.Fprintf(&b, "Customer: %s <%s>\n", deref(rmaCase.CustomerName), deref(rmaCase.CustomerEmail))
	if rmaCase.SerialNumber != nil {
		fmt.Fprintf(&b, "Serial: %s\n", *rmaCase.SerialNumber)
	}
	if rmaCase.OrderID != nil {
		fmt.Fprintf(&b, "Order: %s\n", *rmaCase.OrderID)
	}
	fmt.Fprintf(&b, "Issue: %s\n", deref(rmaCase.IssueSummary))
	return b.String()
}

func ticketPriority(priority enums.RmaPriority) string {
	switch priority {
	case enums.RmaPriorityUrgent, enums.RmaPriorityHigh:
		return "HIGH"
	case enums.RmaPriorityLow:
		return "LOW"
	default:
		return "MEDIUM"
	}
}

func buildActor(email *string, source enums.RmaSource) *outbox.ActorRef {
	if email != nil && strings.TrimSpace(*email) != "" {
		return &outbox.ActorRef{Email: *email}
	}
	if source == enums.RmaSourceShopifyWebhook {
		return &outbox.ActorRef{System: "shopify-webhook"}
	}
	return nil
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func trimmedPtr(value *string) *string {
	text := trimmed(value)
	if text == "" {
		return nil
	}
	return &text
}

func nilIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableText(value string) any {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil
	}
	return text
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
