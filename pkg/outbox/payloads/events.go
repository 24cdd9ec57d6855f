package payloads

import (
	"time"

	"github.com/evermark/servicedesk-backend/pkg/enums"
	"github.com/google/uuid"
)

// CaseCreatedEvent signals a new RMA case was opened.
type CaseCreatedEvent struct {
	CaseID       uuid.UUID           `json:"case_id"`
	Source       enums.RmaSource     `json:"source"`
	Status       enums.RmaCaseStatus `json:"status"`
	Priority     enums.RmaPriority   `json:"priority"`
	SerialNumber *string             `json:"serial_number,omitempty"`
	OrderID      *string             `json:"order_id,omitempty"`
	SlaDueAt     *time.Time          `json:"sla_due_at,omitempty"`
}

// CaseDedupedEvent is emitted when an intake matched an existing open case
// instead of opening a new one.
type CaseDedupedEvent struct {
	CaseID          uuid.UUID       `json:"case_id"`
	Source          enums.RmaSource `json:"source"`
	SerialNumber    *string         `json:"serial_number,omitempty"`
	ShopifyReturnID *string         `json:"shopify_return_id,omitempty"`
}

// CaseUpdatedEvent reports which fields changed on a case.
type CaseUpdatedEvent struct {
	CaseID        uuid.UUID `json:"case_id"`
	ChangedFields []string  `json:"changed_fields"`
}

// CaseStatusChangedEvent carries a lifecycle transition.
type CaseStatusChangedEvent struct {
	CaseID     uuid.UUID           `json:"case_id"`
	FromStatus enums.RmaCaseStatus `json:"from_status"`
	ToStatus   enums.RmaCaseStatus `json:"to_status"`
	ChangedAt  time.Time           `json:"changed_at"`
}

// CaseEscalatedEvent is emitted when an open case blows past its SLA due date.
type CaseEscalatedEvent struct {
	CaseID       uuid.UUID           `json:"case_id"`
	Status       enums.RmaCaseStatus `json:"status"`
	FromPriority enums.RmaPriority   `json:"from_priority"`
	ToPriority   enums.RmaPriority   `json:"to_priority"`
	SlaDueAt     time.Time           `json:"sla_due_at"`
}

// TrackingAutomationFiredEvent records which derived effects a tracking
// update produced.
type TrackingAutomationFiredEvent struct {
	CaseID        uuid.UUID            `json:"case_id"`
	Leg           string               `json:"leg"`
	FromStatus    enums.RmaCaseStatus  `json:"from_status"`
	ToStatus      *enums.RmaCaseStatus `json:"to_status,omitempty"`
	AppliedFields []string             `json:"applied_fields"`
}

// ServiceEventAppendedEvent mirrors a new row in the serial history log.
type ServiceEventAppendedEvent struct {
	SerialRegistryID uuid.UUID              `json:"serial_registry_id"`
	SerialNumber     string                 `json:"serial_number"`
	EventID          uuid.UUID              `json:"event_id"`
	EventType        enums.ServiceEventType `json:"event_type"`
	RmaCaseID        *uuid.UUID             `json:"rma_case_id,omitempty"`
}

// RecommendationRecordedEvent is emitted after an AI verdict is stored on a case.
type RecommendationRecordedEvent struct {
	CaseID         uuid.UUID            `json:"case_id"`
	Recommendation enums.Recommendation `json:"recommendation"`
	Confidence     float64              `json:"confidence"`
}

// SupportTicketRequestedEvent reports the outcome of a notify call.
type SupportTicketRequestedEvent struct {
	CaseID          uuid.UUID `json:"case_id"`
	SupportTicketID *string   `json:"support_ticket_id,omitempty"`
	Failed          bool      `json:"failed"`
}

// CampaignPushRequestedEvent mirrors a fire-and-forget campaign side effect.
type CampaignPushRequestedEvent struct {
	CaseID       uuid.UUID `json:"case_id"`
	SerialNumber *string   `json:"serial_number,omitempty"`
	Campaign     string    `json:"campaign"`
}
