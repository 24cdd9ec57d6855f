package rma

import (
	"fmt"
	"strings"
	"time"

	"github.com/evermark/servicedesk-backend/pkg/enums"
)

// Snapshot is the pre-update view of the fields tracking automation reads.
type Snapshot struct {
	Status                 enums.RmaCaseStatus
	InboundTrackingNumber  string
	InboundStatus          string
	OutboundTrackingNumber string
	OutboundStatus         string
	ReceivedAt             *time.Time
	InspectedAt            *time.Time
	ShippedBackAt          *time.Time
	DeliveredBackAt        *time.Time
	ClosedAt               *time.Time
}

// TrackingChange is the caller's delta. Nil means the caller did not touch
// the field; any value the caller supplies wins over automation.
type TrackingChange struct {
	Status                 *enums.RmaCaseStatus
	ReceivedAt             *time.Time
	InspectedAt            *time.Time
	ShippedBackAt          *time.Time
	DeliveredBackAt        *time.Time
	InboundTrackingNumber  *string
	InboundStatus          *string
	OutboundTrackingNumber *string
	OutboundStatus         *string
}

// Effect lists the writes automation derived plus one note per fired rule.
// An empty Effect means no rule matched.
type Effect struct {
	Status          *enums.RmaCaseStatus
	ReceivedAt      *time.Time
	InspectedAt     *time.Time
	ShippedBackAt   *time.Time
	DeliveredBackAt *time.Time
	ClosedAt        *time.Time
	Notes           []string
	Legs            []string
}

// Fired reports whether any rule produced a write.
func (e Effect) Fired() bool {
	return len(e.Notes) > 0
}

// AppliedFields names the case columns the effect writes, in a fixed order.
func (e Effect) AppliedFields() []string {
	var fields []string
	if e.Status != nil {
		fields = append(fields, "status")
	}
	if e.ReceivedAt != nil {
		fields = append(fields, "received_at")
	}
	if e.InspectedAt != nil {
		fields = append(fields, "inspected_at")
	}
	if e.ShippedBackAt != nil {
		fields = append(fields, "shipped_back_at")
	}
	if e.DeliveredBackAt != nil {
		fields = append(fields, "delivered_back_at")
	}
	if e.ClosedAt != nil {
		fields = append(fields, "closed_at")
	}
	return fields
}

// Leg names the logistics side the effect came from.
func (e Effect) Leg() string {
	return strings.Join(e.Legs, "+")
}

// Derive computes the automated field writes for one tracking update.
//
// Technicians treat tracking numbers as the single source of truth, so the
// timestamps and status transitions they imply are filled in here rather
// than requiring a second manual step. The function is pure: it never reads
// the clock or the database, and the caller applies the effect.
//
// Outbound close is intentionally eager: the case closes the moment an
// outbound tracking number appears, before delivery confirmation.
func Derive(prior Snapshot, change TrackingChange, now time.Time) Effect {
	var eff Effect

	status := prior.Status
	if change.Status != nil {
		status = *change.Status
	}

	inboundStatus := mergeString(prior.InboundStatus, change.InboundStatus)
	outboundStatus := mergeString(prior.OutboundStatus, change.OutboundStatus)
	outboundTracking := mergeString(prior.OutboundTrackingNumber, change.OutboundTrackingNumber)

	receivedAt := mergeTime(prior.ReceivedAt, change.ReceivedAt)
	inspectedAt := mergeTime(prior.InspectedAt, change.InspectedAt)
	shippedBackAt := mergeTime(prior.ShippedBackAt, change.ShippedBackAt)
	deliveredBackAt := mergeTime(prior.DeliveredBackAt, change.DeliveredBackAt)
	closedAt := prior.ClosedAt

	if appeared(prior.InboundTrackingNumber, change.InboundTrackingNumber) {
		if receivedAt == nil {
			eff.ReceivedAt = &now
			eff.Notes = append(eff.Notes, fmt.Sprintf("inbound tracking %s recorded, marked received", strings.TrimSpace(*change.InboundTrackingNumber)))
			eff.markLeg("inbound")
		}
	}

	if change.Status == nil && status == enums.RmaCaseStatusReceived && mentionsDelivered(inboundStatus) {
		next := enums.RmaCaseStatusTesting
		eff.Status = &next
		status = next
		if inspectedAt == nil {
			eff.InspectedAt = &now
		}
		eff.Notes = append(eff.Notes, "inbound delivered, moved to testing")
		eff.markLeg("inbound")
	}

	if appeared(prior.OutboundTrackingNumber, change.OutboundTrackingNumber) {
		if shippedBackAt == nil {
			eff.ShippedBackAt = &now
			eff.Notes = append(eff.Notes, fmt.Sprintf("outbound tracking %s recorded, marked shipped", strings.TrimSpace(*change.OutboundTrackingNumber)))
			eff.markLeg("outbound")
		}
		if change.Status == nil && status != enums.RmaCaseStatusBackToCustomer {
			next := enums.RmaCaseStatusBackToCustomer
			eff.Status = &next
			status = next
			if closedAt == nil {
				eff.ClosedAt = &now
				closedAt = &now
			}
			eff.Notes = append(eff.Notes, "outbound shipment opened, case closed as back to customer")
			eff.markLeg("outbound")
		}
	}

	if strings.TrimSpace(outboundTracking) != "" && mentionsDelivered(outboundStatus) {
		if deliveredBackAt == nil {
			eff.DeliveredBackAt = &now
			eff.Notes = append(eff.Notes, "outbound delivered, delivery confirmed")
			eff.markLeg("outbound")
		}
		if closedAt == nil && (change.Status == nil || *change.Status == enums.RmaCaseStatusBackToCustomer) {
			if status != enums.RmaCaseStatusBackToCustomer {
				next := enums.RmaCaseStatusBackToCustomer
				eff.Status = &next
				status = next
			}
			eff.ClosedAt = &now
			closedAt = &now
			eff.Notes = append(eff.Notes, "delivery confirmed, case closed")
			eff.markLeg("outbound")
		}
	}

	return eff
}

func (e *Effect) markLeg(leg string) {
	for _, existing := range e.Legs {
		if existing == leg {
			return
		}
	}
	e.Legs = append(e.Legs, leg)
}

// appeared reports an empty-to-non-empty transition driven by the delta.
func appeared(prior string, change *string) bool {
	if change == nil {
		return false
	}
	return strings.TrimSpace(prior) == "" && strings.TrimSpace(*change) != ""
}

// mentionsDelivered is an intentionally loose substring match: carrier status
// strings vary ("Delivered", "delivered to front desk", ...).
func mentionsDelivered(status string) bool {
	return strings.Contains(strings.ToLower(status), "delivered")
}

func mergeString(prior string, change *string) string {
	if change != nil {
		return *change
	}
	return prior
}

func mergeTime(prior *time.Time, change *time.Time) *time.Time {
	if change != nil {
		return change
	}
	return prior
}
