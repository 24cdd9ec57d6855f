package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evermark/servicedesk-backend/api/middleware"
	"github.com/evermark/servicedesk-backend/api/responses"
	"github.com/evermark/servicedesk-backend/api/validators"
	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

type caseCreateRequest struct {
	Source                  string  `json:"source" validate:"required"`
	CustomerName            string  `json:"customer_name" validate:"required"`
	CustomerEmail           string  `json:"customer_email" validate:"required,email"`
	CustomerPhone           *string `json:"customer_phone"`
	OrderID                 *string `json:"order_id"`
	OrderName               *string `json:"order_name"`
	SerialNumber            *string `json:"serial_number"`
	Brand                   *string `json:"brand"`
	Model                   *string `json:"model"`
	IssueSummary            string  `json:"issue_summary" validate:"required"`
	IssueDetails            *string `json:"issue_details"`
	Priority                *string `json:"priority"`
	WarrantyStatus          *string `json:"warranty_status"`
	InventoryItemID         *string `json:"inventory_item_id"`
	ShopifyReturnID         *string `json:"shopify_return_id"`
	AssignedTechnicianEmail *string `json:"assigned_technician_email"`
	OpenSupportTicket       bool    `json:"open_support_ticket"`
}

func (r caseCreateRequest) toInput(actorEmail *string) (rma.CreateCaseInput, error) {
	source, err := enums.ParseRmaSource(strings.TrimSpace(r.Source))
	if err != nil {
		return rma.CreateCaseInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid case source")
	}

	input := rma.CreateCaseInput{
		Source:                  source,
		CustomerName:            strings.TrimSpace(r.CustomerName),
		CustomerEmail:           strings.TrimSpace(r.CustomerEmail),
		CustomerPhone:           r.CustomerPhone,
		OrderID:                 r.OrderID,
		OrderName:               r.OrderName,
		SerialNumber:            r.SerialNumber,
		Brand:                   r.Brand,
		Model:                   r.Model,
		IssueSummary:            strings.TrimSpace(r.IssueSummary),
		IssueDetails:            r.IssueDetails,
		ShopifyReturnID:         r.ShopifyReturnID,
		AssignedTechnicianEmail: r.AssignedTechnicianEmail,
		OpenSupportTicket:       r.OpenSupportTicket,
		ActorEmail:              actorEmail,
	}

	if r.Priority != nil {
		priority, err := enums.ParseRmaPriority(strings.TrimSpace(*r.Priority))
		if err != nil {
			return rma.CreateCaseInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority")
		}
		input.Priority = &priority
	}
	if r.WarrantyStatus != nil {
		warranty, err := enums.ParseWarrantyStatus(strings.TrimSpace(*r.WarrantyStatus))
		if err != nil {
			return rma.CreateCaseInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid warranty status")
		}
		input.WarrantyStatus = &warranty
	}
	if r.InventoryItemID != nil {
		itemID, err := uuid.Parse(strings.TrimSpace(*r.InventoryItemID))
		if err != nil {
			return rma.CreateCaseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid inventory_item_id")
		}
		input.InventoryItemID = &itemID
	}

	return input, nil
}

// CaseCreate opens a case or returns the matching open one.
func CaseCreate(svc rma.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "case service unavailable"))
			return
		}

		var payload caseCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(operatorEmailPtr(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Deduped {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, caseCreateResponse{
			Case:    caseResponseFromModel(result.Case),
			Deduped: result.Deduped,
		})
	}
}

// CaseList returns one filtered page of cases.
func CaseList(svc rma.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "case service unavailable"))
			return
		}

		filter, err := caseListFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]caseResponse, 0, len(list.Cases))
		for i := range list.Cases {
			items = append(items, caseResponseFromModel(&list.Cases[i]))
		}
		responses.WriteSuccess(w, caseListResponse{
			Cases:   items,
			Total:   list.Total,
			Offset:  list.Offset,
			Limit:   list.Limit,
			HasMore: list.HasMore,
		})
	}
}

// CaseDetail returns one case with its serial history context.
func CaseDetail(svc rma.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "case service unavailable"))
			return
		}

		caseID, err := caseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), caseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := caseDetailResponse{Case: caseResponseFromModel(&detail.Case)}
		if detail.Registry != nil {
			registry := registryResponseFromModel(detail.Registry)
			resp.Registry = &registry
		}
		if detail.Item != nil {
			resp.Item = &inventoryItemResponse{
				ID:    detail.Item.ID,
				SKU:   detail.Item.SKU,
				Title: detail.Item.Title,
				Brand: detail.Item.Brand,
				Model: detail.Item.Model,
			}
		}
		resp.Events = serviceEventResponses(detail.Events)
		responses.WriteSuccess(w, resp)
	}
}

type caseUpdateRequest struct {
	Status         *string `json:"status"`
	Priority       *string `json:"priority"`
	WarrantyStatus *string `json:"warranty_status"`

	SerialNumber *string `json:"serial_number"`

	CustomerName  *string `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
	CustomerPhone *string `json:"customer_phone"`

	OrderID   *string `json:"order_id"`
	OrderName *string `json:"order_name"`

	IssueSummary           *string `json:"issue_summary"`
	IssueDetails           *string `json:"issue_details"`
	ArrivalConditionReport *string `json:"arrival_condition_report"`

	InboundCarrier        *string `json:"inbound_carrier"`
	InboundTrackingNumber *string `json:"inbound_tracking_number"`
	InboundTrackingURL    *string `json:"inbound_tracking_url"`
	InboundStatus         *string `json:"inbound_status"`

	OutboundCarrier        *string `json:"outbound_carrier"`
	OutboundTrackingNumber *string `json:"outbound_tracking_number"`
	OutboundTrackingURL    *string `json:"outbound_tracking_url"`
	OutboundStatus         *string `json:"outbound_status"`

	AssignedTechnicianEmail *string          `json:"assigned_technician_email"`
	InventoryItemID         *string          `json:"inventory_item_id"`
	RepairCost              *decimal.Decimal `json:"repair_cost"`

	SlaDueAt        *time.Time `json:"sla_due_at"`
	ReceivedAt      *time.Time `json:"received_at"`
	InspectedAt     *time.Time `json:"inspected_at"`
	ShippedBackAt   *time.Time `json:"shipped_back_at"`
	DeliveredBackAt *time.Time `json:"delivered_back_at"`
}

func (r caseUpdateRequest) toInput(actorEmail *string) (rma.UpdateCaseInput, error) {
	input := rma.UpdateCaseInput{
		SerialNumber:            r.SerialNumber,
		CustomerName:            r.CustomerName,
		CustomerEmail:           r.CustomerEmail,
		CustomerPhone:           r.CustomerPhone,
		OrderID:                 r.OrderID,
		OrderName:               r.OrderName,
		IssueSummary:            r.IssueSummary,
		IssueDetails:            r.IssueDetails,
		ArrivalConditionReport:  r.ArrivalConditionReport,
		InboundCarrier:          r.InboundCarrier,
		InboundTrackingNumber:   r.InboundTrackingNumber,
		InboundTrackingURL:      r.InboundTrackingURL,
		InboundStatus:           r.InboundStatus,
		OutboundCarrier:         r.OutboundCarrier,
		OutboundTrackingNumber:  r.OutboundTrackingNumber,
		OutboundTrackingURL:     r.OutboundTrackingURL,
		OutboundStatus:          r.OutboundStatus,
		AssignedTechnicianEmail: r.AssignedTechnicianEmail,
		RepairCost:              r.RepairCost,
		SlaDueAt:                r.SlaDueAt,
		ReceivedAt:              r.ReceivedAt,
		InspectedAt:             r.InspectedAt,
		ShippedBackAt:           r.ShippedBackAt,
		DeliveredBackAt:         r.DeliveredBackAt,
		ActorEmail:              actorEmail,
	}

	if r.Status != nil {
		status, err := enums.ParseRmaCaseStatus(strings.TrimSpace(*r.Status))
		if err != nil {
			return rma.UpdateCaseInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid case status")
		}
		input.Status = &status
	}
	if r.Priority != nil {
		priority, err := enums.ParseRmaPriority(strings.TrimSpace(*r.Priority))
		if err != nil {
			return rma.UpdateCaseInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority")
		}
		input.Priority = &priority
	}
	if r.WarrantyStatus != nil {
		warranty, err := enums.ParseWarrantyStatus(strings.TrimSpace(*r.WarrantyStatus))
		if err != nil {
			return rma.UpdateCaseInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid warranty status")
		}
		input.WarrantyStatus = &warranty
	}
	if r.InventoryItemID != nil {
		itemID, err := uuid.Parse(strings.TrimSpace(*r.InventoryItemID))
		if err != nil {
			return rma.UpdateCaseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid inventory_item_id")
		}
		input.InventoryItemID = &itemID
	}

	return input, nil
}

// CaseUpdate merges a partial update into the case, running the tracking
// automation and lifecycle transitions along the way.
func CaseUpdate(svc rma.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "case service unavailable"))
			return
		}

		caseID, err := caseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload caseUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(operatorEmailPtr(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), caseID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, caseResponseFromModel(updated))
	}
}

func caseListFilter(r *http.Request) (rma.ListFilter, error) {
	filter := rma.ListFilter{}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseRmaCaseStatus(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("source")); raw != "" {
		source, err := enums.ParseRmaSource(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid source filter")
		}
		filter.Source = &source
	}
	if raw := strings.TrimSpace(query.Get("warranty_status")); raw != "" {
		warranty, err := enums.ParseWarrantyStatus(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid warranty_status filter")
		}
		filter.WarrantyStatus = &warranty
	}
	if raw := strings.TrimSpace(query.Get("priority")); raw != "" {
		priority, err := enums.ParseRmaPriority(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority filter")
		}
		filter.Priority = &priority
	}
	if raw := strings.TrimSpace(query.Get("assigned_technician_email")); raw != "" {
		filter.AssignedTechnicianEmail = &raw
	}
	if raw := strings.TrimSpace(query.Get("serial_number")); raw != "" {
		filter.SerialNumber = &raw
	}
	if raw := strings.TrimSpace(query.Get("customer_email")); raw != "" {
		filter.CustomerEmail = &raw
	}
	if raw := strings.TrimSpace(query.Get("search")); raw != "" {
		filter.Search = &raw
	}

	// mine=true narrows to the calling operator's queue.
	if raw := strings.TrimSpace(query.Get("mine")); strings.EqualFold(raw, "true") {
		operator := middleware.OperatorEmailFromContext(r.Context())
		if operator == "" {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "mine=true requires the X-Operator-Email header")
		}
		filter.AssignedTechnicianEmail = &operator
	}

	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return filter, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
	if err != nil {
		return filter, err
	}
	filter.Offset = offset
	filter.Limit = limit

	return filter, nil
}

func caseIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "caseId"))
	caseID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid case id")
	}
	return caseID, nil
}

func operatorEmailPtr(r *http.Request) *string {
	email := middleware.OperatorEmailFromContext(r.Context())
	if email == "" {
		return nil
	}
	return &email
}

type caseCreateResponse struct {
	Case    caseResponse `json:"case"`
	Deduped bool         `json:"deduped"`
}

type caseListResponse struct {
	Cases   []caseResponse `json:"cases"`
	Total   int64          `json:"total"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
}

type caseDetailResponse struct {
	Case     caseResponse           `json:"case"`
	Registry *registryResponse      `json:"registry,omitempty"`
	Item     *inventoryItemResponse `json:"item,omitempty"`
	Events   []serviceEventResponse `json:"events"`
}

type inventoryItemResponse struct {
	ID    uuid.UUID `json:"id"`
	SKU   *string   `json:"sku,omitempty"`
	Title string    `json:"title"`
	Brand *string   `json:"brand,omitempty"`
	Model *string   `json:"model,omitempty"`
}

type caseResponse struct {
	ID             uuid.UUID            `json:"id"`
	Status         enums.RmaCaseStatus  `json:"status"`
	Priority       enums.RmaPriority    `json:"priority"`
	WarrantyStatus enums.WarrantyStatus `json:"warranty_status"`
	Source         enums.RmaSource      `json:"source"`

	SerialNumber     *string    `json:"serial_number,omitempty"`
	SerialRegistryID *uuid.UUID `json:"serial_registry_id,omitempty"`

	OrderID   *string `json:"order_id,omitempty"`
	OrderName *string `json:"order_name,omitempty"`

	CustomerName  *string `json:"customer_name,omitempty"`
	CustomerEmail *string `json:"customer_email,omitempty"`
	CustomerPhone *string `json:"customer_phone,omitempty"`

	IssueSummary           *string `json:"issue_summary,omitempty"`
	IssueDetails           *string `json:"issue_details,omitempty"`
	ArrivalConditionReport *string `json:"arrival_condition_report,omitempty"`

	InboundCarrier        *string `json:"inbound_carrier,omitempty"`
	InboundTrackingNumber *string `json:"inbound_tracking_number,omitempty"`
	InboundTrackingURL    *string `json:"inbound_tracking_url,omitempty"`
	InboundStatus         *string `json:"inbound_status,omitempty"`

	OutboundCarrier        *string `json:"outbound_carrier,omitempty"`
	OutboundTrackingNumber *string `json:"outbound_tracking_number,omitempty"`
	OutboundTrackingURL    *string `json:"outbound_tracking_url,omitempty"`
	OutboundStatus         *string `json:"outbound_status,omitempty"`

	AssignedTechnicianEmail *string `json:"assigned_technician_email,omitempty"`

	AiRecommendation *types.AiRecommendation `json:"ai_recommendation,omitempty"`

	InventoryItemID *uuid.UUID `json:"inventory_item_id,omitempty"`
	ShopifyReturnID *string    `json:"shopify_return_id,omitempty"`

	SupportTicketID    *string `json:"support_ticket_id,omitempty"`
	SupportTicketError *string `json:"support_ticket_error,omitempty"`

	RepairCost *decimal.Decimal `json:"repair_cost,omitempty"`

	SlaDueAt        *time.Time `json:"sla_due_at,omitempty"`
	ReceivedAt      *time.Time `json:"received_at,omitempty"`
	InspectedAt     *time.Time `json:"inspected_at,omitempty"`
	ShippedBackAt   *time.Time `json:"shipped_back_at,omitempty"`
	DeliveredBackAt *time.Time `json:"delivered_back_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func caseResponseFromModel(m *models.RmaCase) caseResponse {
	return caseResponse{
		ID:                      m.ID,
		Status:                  m.Status,
		Priority:                m.Priority,
		WarrantyStatus:          m.WarrantyStatus,
		Source:                  m.Source,
		SerialNumber:            m.SerialNumber,
		SerialRegistryID:        m.SerialRegistryID,
		OrderID:                 m.OrderID,
		OrderName:               m.OrderName,
		CustomerName:            m.CustomerName,
		CustomerEmail:           m.CustomerEmail,
		CustomerPhone:           m.CustomerPhone,
		IssueSummary:            m.IssueSummary,
		IssueDetails:            m.IssueDetails,
		ArrivalConditionReport:  m.ArrivalConditionReport,
		InboundCarrier:          m.InboundCarrier,
		InboundTrackingNumber:   m.InboundTrackingNumber,
		InboundTrackingURL:      m.InboundTrackingURL,
		InboundStatus:           m.InboundStatus,
		OutboundCarrier:         m.OutboundCarrier,
		OutboundTrackingNumber:  m.OutboundTrackingNumber,
		OutboundTrackingURL:     m.OutboundTrackingURL,
		OutboundStatus:          m.OutboundStatus,
		AssignedTechnicianEmail: m.AssignedTechnicianEmail,
		AiRecommendation:        m.AiRecommendation,
		InventoryItemID:         m.InventoryItemID,
		ShopifyReturnID:         m.ShopifyReturnID,
		SupportTicketID:         m.SupportTicketID,
		SupportTicketError:      m.SupportTicketError,
		RepairCost:              m.RepairCost,
		SlaDueAt:                m.SlaDueAt,
		ReceivedAt:              m.ReceivedAt,
		InspectedAt:             m.InspectedAt,
		ShippedBackAt:           m.ShippedBackAt,
		DeliveredBackAt:         m.DeliveredBackAt,
		ClosedAt:                m.ClosedAt,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}
