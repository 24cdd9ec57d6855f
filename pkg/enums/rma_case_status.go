package enums

import "fmt"

// RmaCaseStatus tracks the lifecycle of an RMA case. The intended forward
// order is received -> testing -> sent_to_manufacturer -> repaired_replaced
// -> back_to_customer, with back_to_customer terminal. Any status may still
// be written directly by an authorized update; automation handles the
// common transitions.
type RmaCaseStatus string

const (
	RmaCaseStatusReceived           RmaCaseStatus = "received"
	RmaCaseStatusTesting            RmaCaseStatus = "testing"
	RmaCaseStatusSentToManufacturer RmaCaseStatus = "sent_to_manufacturer"
	RmaCaseStatusRepairedReplaced   RmaCaseStatus = "repaired_replaced"
	RmaCaseStatusBackToCustomer     RmaCaseStatus = "back_to_customer"
)

var validRmaCaseStatuses = []RmaCaseStatus{
	RmaCaseStatusReceived,
	RmaCaseStatusTesting,
	RmaCaseStatusSentToManufacturer,
	RmaCaseStatusRepairedReplaced,
	RmaCaseStatusBackToCustomer,
}

// String implements fmt.Stringer.
func (s RmaCaseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RmaCaseStatus.
func (s RmaCaseStatus) IsValid() bool {
	for _, candidate := range validRmaCaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status closes the case.
func (s RmaCaseStatus) IsTerminal() bool {
	return s == RmaCaseStatusBackToCustomer
}

// ParseRmaCaseStatus converts raw input into an RmaCaseStatus.
func ParseRmaCaseStatus(value string) (RmaCaseStatus, error) {
	for _, candidate := range validRmaCaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rma case status %q", value)
}
