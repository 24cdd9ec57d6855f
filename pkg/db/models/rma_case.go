package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evermark/servicedesk-backend/pkg/enums"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

// RmaCase represents one customer return/repair intake.
//
// closed_at is set exactly when status reaches back_to_customer, and
// received_at only once the unit has physically arrived. Both invariants are
// maintained by the case service and the tracking automation, not by the
// database.
type RmaCase struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status         enums.RmaCaseStatus  `gorm:"column:status;type:rma_case_status;not null;default:'received'"`
	Priority       enums.RmaPriority    `gorm:"column:priority;type:rma_priority;not null;default:'normal'"`
	WarrantyStatus enums.WarrantyStatus `gorm:"column:warranty_status;type:warranty_status;not null;default:'unknown'"`
	Source         enums.RmaSource      `gorm:"column:source;type:rma_source;not null"`

	SerialNumber *string `gorm:"column:serial_number"`

	// SerialRegistryID points at the registry row once the serial is upserted.
	SerialRegistryID *uuid.UUID `gorm:"column:serial_registry_id;type:uuid"`

	OrderID   *string `gorm:"column:order_id"`
	OrderName *string `gorm:"column:order_name"`

	CustomerName  *string `gorm:"column:customer_name"`
	CustomerEmail *string `gorm:"column:customer_email"`
	CustomerPhone *string `gorm:"column:customer_phone"`

	IssueSummary           *string `gorm:"column:issue_summary"`
	IssueDetails           *string `gorm:"column:issue_details"`
	ArrivalConditionReport *string `gorm:"column:arrival_condition_report"`

	InboundCarrier        *string `gorm:"column:inbound_carrier"`
	InboundTrackingNumber *string `gorm:"column:inbound_tracking_number"`
	InboundTrackingURL    *string `gorm:"column:inbound_tracking_url"`
	InboundStatus         *string `gorm:"column:inbound_status"`

	OutboundCarrier        *string `gorm:"column:outbound_carrier"`
	OutboundTrackingNumber *string `gorm:"column:outbound_tracking_number"`
	OutboundTrackingURL    *string `gorm:"column:outbound_tracking_url"`
	OutboundStatus         *string `gorm:"column:outbound_status"`

	AssignedTechnicianEmail *string `gorm:"column:assigned_technician_email"`

	AiRecommendation *types.AiRecommendation `gorm:"column:ai_recommendation;type:jsonb;serializer:json"`

	InventoryItemID *uuid.UUID `gorm:"column:inventory_item_id;type:uuid"`

	// ShopifyReturnID dedupes webhook intakes; unique where present.
	ShopifyReturnID *string `gorm:"column:shopify_return_id"`

	SupportTicketID    *string `gorm:"column:support_ticket_id"`
	SupportTicketError *string `gorm:"column:support_ticket_error"`

	RepairCost *decimal.Decimal `gorm:"column:repair_cost;type:numeric(12,2)"`

	SlaDueAt        *time.Time `gorm:"column:sla_due_at"`
	ReceivedAt      *time.Time `gorm:"column:received_at"`
	InspectedAt     *time.Time `gorm:"column:inspected_at"`
	ShippedBackAt   *time.Time `gorm:"column:shipped_back_at"`
	DeliveredBackAt *time.Time `gorm:"column:delivered_back_at"`
	ClosedAt        *time.Time `gorm:"column:closed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOpen reports whether the case still counts against the service queue.
func (c RmaCase) IsOpen() bool {
	return c.Status != enums.RmaCaseStatusBackToCustomer
}
