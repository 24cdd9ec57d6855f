package rma

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
)

// CreateCaseInput carries one intake. Pointer fields are optional.
type CreateCaseInput struct {
	Source                  enums.RmaSource
	CustomerName            string
	CustomerEmail           string
	CustomerPhone           *string
	OrderID                 *string
	OrderName               *string
	SerialNumber            *string
	Brand                   *string
	Model                   *string
	IssueSummary            string
	IssueDetails            *string
	Priority                *enums.RmaPriority
	WarrantyStatus          *enums.WarrantyStatus
	InventoryItemID         *uuid.UUID
	ShopifyReturnID         *string
	AssignedTechnicianEmail *string

	// OpenSupportTicket asks for a best-effort external ticket after commit.
	OpenSupportTicket bool

	ActorEmail *string
}

// CreateCaseResult reports the case plus whether intake matched an existing
// open case instead of inserting a new one.
type CreateCaseResult struct {
	Case    *models.RmaCase `json:"case"`
	Deduped bool            `json:"deduped"`
}

// UpdateCaseInput is a partial merge; nil fields stay untouched.
type UpdateCaseInput struct {
	Status         *enums.RmaCaseStatus
	Priority       *enums.RmaPriority
	WarrantyStatus *enums.WarrantyStatus

	// SerialNumber re-links the registry when it changes; empty clears it.
	SerialNumber *string

	CustomerName  *string
	CustomerEmail *string
	CustomerPhone *string

	OrderID   *string
	OrderName *string

	IssueSummary           *string
	IssueDetails           *string
	ArrivalConditionReport *string

	InboundCarrier        *string
	InboundTrackingNumber *string
	InboundTrackingURL    *string
	InboundStatus         *string

	OutboundCarrier        *string
	OutboundTrackingNumber *string
	OutboundTrackingURL    *string
	OutboundStatus         *string

	AssignedTechnicianEmail *string
	InventoryItemID         *uuid.UUID
	RepairCost              *decimal.Decimal

	SlaDueAt        *time.Time
	ReceivedAt      *time.Time
	InspectedAt     *time.Time
	ShippedBackAt   *time.Time
	DeliveredBackAt *time.Time

	ActorEmail *string
}

// CaseDetail is the case plus its registry and catalog context for the
// detail view.
type CaseDetail struct {
	Case     models.RmaCase              `json:"case"`
	Registry *models.SerialRegistry      `json:"registry,omitempty"`
	Item     *models.InventoryItem       `json:"item,omitempty"`
	Events   []models.SerialServiceEvent `json:"events,omitempty"`
}

// ListFilter narrows and pages the case list.
type ListFilter struct {
	Status                  *enums.RmaCaseStatus
	Source                  *enums.RmaSource
	WarrantyStatus          *enums.WarrantyStatus
	Priority                *enums.RmaPriority
	AssignedTechnicianEmail *string
	SerialNumber            *string
	CustomerEmail           *string
	Search                  *string
	Offset                  int
	Limit                   int
}

// CaseList is one page of cases with pagination metadata.
type CaseList struct {
	Cases   []models.RmaCase `json:"cases"`
	Total   int64            `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
	HasMore bool             `json:"has_more"`
}
