package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateRmaCase        OutboxAggregateType = "rma_case"
	AggregateSerialRegistry OutboxAggregateType = "serial_registry"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRmaCase,
	AggregateSerialRegistry,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCaseCreated             OutboxEventType = "case_created"
	EventCaseDeduped             OutboxEventType = "case_deduped"
	EventCaseUpdated             OutboxEventType = "case_updated"
	EventCaseStatusChanged       OutboxEventType = "case_status_changed"
	EventCaseEscalated           OutboxEventType = "case_escalated"
	EventTrackingAutomationFired OutboxEventType = "tracking_automation_fired"
	EventServiceEventAppended    OutboxEventType = "service_event_appended"
	EventRecommendationRecorded  OutboxEventType = "recommendation_recorded"
	EventSupportTicketRequested  OutboxEventType = "support_ticket_requested"
	EventCampaignPushRequested   OutboxEventType = "campaign_push_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCaseCreated,
	EventCaseDeduped,
	EventCaseUpdated,
	EventCaseStatusChanged,
	EventCaseEscalated,
	EventTrackingAutomationFired,
	EventServiceEventAppended,
	EventRecommendationRecorded,
	EventSupportTicketRequested,
	EventCampaignPushRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
