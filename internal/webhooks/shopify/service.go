package shopifywebhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

const (
	// guardSource scopes processed-event markers in redis.
	guardSource = "shopify_webhook"

	defaultTopic       = "returns/create"
	fallbackIssueTitle = "returned item"
	fallbackCustomer   = "Shopify Customer"
	fallbackReasonText = "no reason given"
)

// serialPropertyNames are the line-item property keys storefront apps use to
// attach a unit serial to a fulfillment.
var serialPropertyNames = []string{"serial number", "serial_number", "serial", "sn"}

type caseCreator interface {
	Create(ctx context.Context, input rma.CreateCaseInput) (*rma.CreateCaseResult, error)
}

// eventGuard is the redis-backed processed-event filter. It is advisory: if
// redis is down the intake proceeds and the return-id unique column dedupes.
type eventGuard interface {
	CheckAndMarkProcessed(ctx context.Context, source, eventID string) (bool, error)
	Delete(ctx context.Context, source, eventID string) error
}

// inventoryResolver maps a line-item SKU onto the catalog. Optional and
// best-effort: a miss or an outage leaves the case unlinked.
type inventoryResolver interface {
	FindBySKU(ctx context.Context, sku string) (*models.InventoryItem, error)
}

type ServiceParams struct {
	Cases     caseCreator
	Guard     eventGuard
	Inventory inventoryResolver
	Logger    *logger.Logger
}

type Service struct {
	cases     caseCreator
	guard     eventGuard
	inventory inventoryResolver
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Cases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "case service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event guard required")
	}
	return &Service{
		cases:     params.Cases,
		guard:     params.Guard,
		inventory: params.Inventory,
		logg:      params.Logger,
	}, nil
}

// ReturnEvent is the returns/create webhook payload, trimmed to the fields
// the intake reads.
type ReturnEvent struct {
	ID              int64            `json:"id"`
	OrderID         int64            `json:"order_id"`
	Name            string           `json:"name"`
	Status          string           `json:"status"`
	Order           *ReturnOrder     `json:"order"`
	Customer        *ReturnCustomer  `json:"customer"`
	ReturnLineItems []ReturnLineItem `json:"return_line_items"`
}

type ReturnOrder struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ReturnCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type ReturnLineItem struct {
	Quantity            int                  `json:"quantity"`
	ReturnReason        string               `json:"return_reason"`
	ReturnReasonNote    string               `json:"return_reason_note"`
	FulfillmentLineItem *FulfillmentLineItem `json:"fulfillment_line_item"`
}

type FulfillmentLineItem struct {
	LineItem *LineItem `json:"line_item"`
}

type LineItem struct {
	Title      string             `json:"title"`
	SKU        string             `json:"sku"`
	Properties []LineItemProperty `json:"properties"`
}

type LineItemProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Result reports how the intake landed: a fresh case, the existing case for
// a duplicate return, or nothing because this delivery was already handled.
type Result struct {
	Case             *models.RmaCase `json:"case,omitempty"`
	Deduped          bool            `json:"deduped"`
	AlreadyProcessed bool            `json:"already_processed"`
}

// HandleReturnCreated maps a returns/create delivery onto a case. The redis
// marker is set before the create and rolled back if the create fails, so a
// webhook retry after a transient failure still lands.
func (s *Service) HandleReturnCreated(ctx context.Context, topic string, event *ReturnEvent) (*Result, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return payload required")
	}
	if event.ID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id missing")
	}

	input, err := buildCreateInput(topic, event)
	if err != nil {
		return nil, err
	}

	returnID := strconv.FormatInt(event.ID, 10)
	marked := false
	alreadyProcessed, guardErr := s.guard.CheckAndMarkProcessed(ctx, guardSource, returnID)
	switch {
	case guardErr != nil:
		s.logError(ctx, returnID, "event guard unavailable, relying on return id uniqueness", guardErr)
	case alreadyProcessed:
		return &Result{AlreadyProcessed: true}, nil
	default:
		marked = true
	}

	if s.inventory != nil {
		if sku := firstLineSKU(event); sku != "" {
			item, err := s.inventory.FindBySKU(ctx, sku)
			switch {
			case err == nil:
				input.InventoryItemID = &item.ID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				s.logError(ctx, returnID, "resolve inventory item by sku", err)
			}
		}
	}

	result, err := s.cases.Create(ctx, input)
	if err != nil {
		if marked {
			if delErr := s.guard.Delete(ctx, guardSource, returnID); delErr != nil {
				s.logError(ctx, returnID, "clear processed marker", delErr)
			}
		}
		return nil, err
	}

	return &Result{Case: result.Case, Deduped: result.Deduped}, nil
}

func buildCreateInput(topic string, event *ReturnEvent) (rma.CreateCaseInput, error) {
	trimmedTopic := strings.TrimSpace(topic)
	if trimmedTopic == "" {
		trimmedTopic = defaultTopic
	}

	details := rma.IssueDetails{
		Format:       rma.IssueDetailsFormatStructured,
		WebhookTopic: trimmedTopic,
	}
	var serial *string
	for _, line := range event.ReturnLineItems {
		item := lineItemOf(line)
		details.LineItems = append(details.LineItems, rma.IssueLineItem{
			Item:   itemTitle(item),
			SKU:    itemSKU(item),
			Serial: serialProperty(item),
			Qty:    line.Quantity,
			Reason: reasonText(line),
		})
		if serial == nil {
			if found := serialProperty(item); found != "" {
				serial = &found
			}
		}
	}

	encoded, err := rma.EncodeIssueDetails(details)
	if err != nil {
		return rma.CreateCaseInput{}, err
	}

	returnID := strconv.FormatInt(event.ID, 10)
	input := rma.CreateCaseInput{
		Source:          enums.RmaSourceShopifyWebhook,
		CustomerName:    customerName(event.Customer),
		CustomerEmail:   customerEmail(event),
		IssueSummary:    issueSummary(event),
		IssueDetails:    &encoded,
		SerialNumber:    serial,
		ShopifyReturnID: &returnID,
	}
	if event.Customer != nil {
		if phone := strings.TrimSpace(event.Customer.Phone); phone != "" {
			input.CustomerPhone = &phone
		}
	}
	if event.OrderID != 0 {
		orderID := strconv.FormatInt(event.OrderID, 10)
		input.OrderID = &orderID
	} else if event.Order != nil && event.Order.ID != 0 {
		orderID := strconv.FormatInt(event.Order.ID, 10)
		input.OrderID = &orderID
	}
	if event.Order != nil {
		if name := strings.TrimSpace(event.Order.Name); name != "" {
			input.OrderName = &name
		}
	}
	return input, nil
}

func lineItemOf(line ReturnLineItem) *LineItem {
	if line.FulfillmentLineItem == nil {
		return nil
	}
	return line.FulfillmentLineItem.LineItem
}

func firstLineSKU(event *ReturnEvent) string {
	for _, line := range event.ReturnLineItems {
		if sku := itemSKU(lineItemOf(line)); sku != "" {
			return sku
		}
	}
	return ""
}

func itemTitle(item *LineItem) string {
	if item == nil || strings.TrimSpace(item.Title) == "" {
		return fallbackIssueTitle
	}
	return strings.TrimSpace(item.Title)
}

func itemSKU(item *LineItem) string {
	if item == nil {
		return ""
	}
	return strings.TrimSpace(item.SKU)
}

// serialProperty scans line-item properties for a serial-number entry, the
// way storefront apps usually attach serials to fulfillments.
func serialProperty(item *LineItem) string {
	if item == nil {
		return ""
	}
	for _, property := range item.Properties {
		name := strings.ToLower(strings.TrimSpace(property.Name))
		for _, candidate := range serialPropertyNames {
			if name == candidate {
				if value := strings.TrimSpace(property.Value); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

func reasonText(line ReturnLineItem) string {
	reason := strings.TrimSpace(line.ReturnReason)
	note := strings.TrimSpace(line.ReturnReasonNote)
	switch {
	case reason != "" && note != "":
		return fmt.Sprintf("%s: %s", reason, note)
	case note != "":
		return note
	case reason != "":
		return reason
	default:
		return fallbackReasonText
	}
}

func customerName(customer *ReturnCustomer) string {
	if customer == nil {
		return fallbackCustomer
	}
	name := strings.TrimSpace(strings.TrimSpace(customer.FirstName) + " " + strings.TrimSpace(customer.LastName))
	if name == "" {
		return fallbackCustomer
	}
	return name
}

func customerEmail(event *ReturnEvent) string {
	if event.Customer != nil {
		if email := strings.TrimSpace(event.Customer.Email); email != "" {
			return email
		}
	}
	if event.Order != nil {
		return strings.TrimSpace(event.Order.Email)
	}
	return ""
}

func issueSummary(event *ReturnEvent) string {
	if len(event.ReturnLineItems) == 0 {
		name := strings.TrimSpace(event.Name)
		if name == "" {
			name = strconv.FormatInt(event.ID, 10)
		}
		return fmt.Sprintf("Shopify return %s", name)
	}
	first := event.ReturnLineItems[0]
	return fmt.Sprintf("Return of %s (%s)", itemTitle(lineItemOf(first)), reasonText(first))
}

func (s *Service) logError(ctx context.Context, returnID, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"shopify_return_id": returnID})
	s.logg.Error(logCtx, msg, err)
}
