package enums

import "fmt"

// ServiceEventType classifies entries on a serial number's service timeline.
// The first five mirror case statuses; service_note covers everything else.
type ServiceEventType string

const (
	ServiceEventTypeReceived           ServiceEventType = "received"
	ServiceEventTypeTesting            ServiceEventType = "testing"
	ServiceEventTypeSentToManufacturer ServiceEventType = "sent_to_manufacturer"
	ServiceEventTypeRepairedReplaced   ServiceEventType = "repaired_replaced"
	ServiceEventTypeBackToCustomer     ServiceEventType = "back_to_customer"
	ServiceEventTypeServiceNote        ServiceEventType = "service_note"
)

var validServiceEventTypes = []ServiceEventType{
	ServiceEventTypeReceived,
	ServiceEventTypeTesting,
	ServiceEventTypeSentToManufacturer,
	ServiceEventTypeRepairedReplaced,
	ServiceEventTypeBackToCustomer,
	ServiceEventTypeServiceNote,
}

// String implements fmt.Stringer.
func (e ServiceEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known ServiceEventType.
func (e ServiceEventType) IsValid() bool {
	for _, candidate := range validServiceEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseServiceEventType converts raw input into a ServiceEventType.
func ParseServiceEventType(value string) (ServiceEventType, error) {
	for _, candidate := range validServiceEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service event type %q", value)
}

// ServiceEventTypeForStatus maps a case status onto its timeline event type.
func ServiceEventTypeForStatus(status RmaCaseStatus) ServiceEventType {
	switch status {
	case RmaCaseStatusReceived:
		return ServiceEventTypeReceived
	case RmaCaseStatusTesting:
		return ServiceEventTypeTesting
	case RmaCaseStatusSentToManufacturer:
		return ServiceEventTypeSentToManufacturer
	case RmaCaseStatusRepairedReplaced:
		return ServiceEventTypeRepairedReplaced
	case RmaCaseStatusBackToCustomer:
		return ServiceEventTypeBackToCustomer
	default:
		return ServiceEventTypeServiceNote
	}
}
