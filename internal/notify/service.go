package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/pkg/campaigns"
	dbpkg "github.com/evermark/servicedesk-backend/pkg/db"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/outbox"
	"github.com/evermark/servicedesk-backend/pkg/outbox/payloads"
)

const defaultCampaign = "rma_case_update"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// campaignPusher is the marketing-events slice the notify flow needs.
type campaignPusher interface {
	PushEvent(ctx context.Context, req campaigns.PushEventRequest) (string, error)
}

// Input names the campaign event and optionally annotates it.
type Input struct {
	// Campaign overrides the default event name.
	Campaign string
	// Note rides along as an event property for the campaign template.
	Note       *string
	ActorEmail *string
}

// Result reports what was pushed and where.
type Result struct {
	CampaignEventID string    `json:"campaign_event_id"`
	Campaign        string    `json:"campaign"`
	CustomerEmail   string    `json:"customer_email"`
	PushedAt        time.Time `json:"pushed_at"`
}

// Service pushes customer-facing campaign events for a case.
type Service interface {
	Notify(ctx context.Context, caseID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	cases     rma.Repository
	campaigns campaignPusher
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the notify service. The logger is optional.
func NewService(
	cases rma.Repository,
	pusher campaignPusher,
	tx txRunner,
	outboxSvc outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if cases == nil {
		return nil, fmt.Errorf("case repository required")
	}
	if pusher == nil {
		return nil, fmt.Errorf("campaign pusher required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		cases:     cases,
		campaigns: pusher,
		tx:        tx,
		outbox:    outboxSvc,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Notify pushes a campaign event against the case's customer profile and
// mirrors the push into the outbox. A failed push fails the request; there
// is no local state to keep consistent beyond the mirror event.
func (s *service) Notify(ctx context.Context, caseID uuid.UUID, input Input) (*Result, error) {
	if caseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "case id is required")
	}

	rmaCase, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "case not found")
		}
		return nil, pkgerrors.Wrap(dbpkg.StorageCode(err), err, "load case")
	}

	email := ""
	if rmaCase.CustomerEmail != nil {
		email = strings.TrimSpace(*rmaCase.CustomerEmail)
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "case has no customer email")
	}

	campaign := strings.TrimSpace(input.Campaign)
	if campaign == "" {
		campaign = defaultCampaign
	}

	eventID, pushErr := s.campaigns.PushEvent(ctx, campaigns.PushEventRequest{
		Event:        campaign,
		ProfileEmail: email,
		Properties:   s.eventProperties(rmaCase, input.Note),
	})
	if pushErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, pushErr, "push campaign event")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCampaignPushRequested,
			AggregateType: enums.AggregateRmaCase,
			AggregateID:   rmaCase.ID,
			Actor:         notifyActor(input.ActorEmail),
			Version:       1,
			Data: payloads.CampaignPushRequestedEvent{
				CaseID:       rmaCase.ID,
				SerialNumber: rmaCase.SerialNumber,
				Campaign:     campaign,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithCaseID(ctx, rmaCase.ID.String())
		logCtx = s.logg.WithField(logCtx, "campaign", campaign)
		s.logg.Info(logCtx, "campaign event pushed")
	}

	return &Result{
		CampaignEventID: eventID,
		Campaign:        campaign,
		CustomerEmail:   email,
		PushedAt:        s.now().UTC(),
	}, nil
}

func (s *service) eventProperties(rmaCase *models.RmaCase, note *string) map[string]any {
	props := map[string]any{
		"case_id":  rmaCase.ID.String(),
		"status":   string(rmaCase.Status),
		"priority": string(rmaCase.Priority),
	}
	if rmaCase.SerialNumber != nil {
		props["serial_number"] = *rmaCase.SerialNumber
	}
	if rmaCase.OrderName != nil {
		props["order_name"] = *rmaCase.OrderName
	}
	if rmaCase.OutboundTrackingNumber != nil {
		props["outbound_tracking_number"] = *rmaCase.OutboundTrackingNumber
	}
	if rmaCase.OutboundTrackingURL != nil {
		props["outbound_tracking_url"] = *rmaCase.OutboundTrackingURL
	}
	if note != nil && strings.TrimSpace(*note) != "" {
		props["note"] = strings.TrimSpace(*note)
	}
	return props
}

func notifyActor(email *string) *outbox.ActorRef {
	if email != nil && strings.TrimSpace(*email) != "" {
		return &outbox.ActorRef{Email: strings.TrimSpace(*email)}
	}
	return &outbox.ActorRef{System: "notify"}
}
