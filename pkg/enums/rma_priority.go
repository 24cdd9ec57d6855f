package enums

import "fmt"

// RmaPriority orders cases within the service queue.
type RmaPriority string

const (
	RmaPriorityLow    RmaPriority = "low"
	RmaPriorityNormal RmaPriority = "normal"
	RmaPriorityHigh   RmaPriority = "high"
	RmaPriorityUrgent RmaPriority = "urgent"
)

var validRmaPriorities = []RmaPriority{
	RmaPriorityLow,
	RmaPriorityNormal,
	RmaPriorityHigh,
	RmaPriorityUrgent,
}

// String implements fmt.Stringer.
func (p RmaPriority) String() string {
	return string(p)
}

// IsValid reports whether the value is a known RmaPriority.
func (p RmaPriority) IsValid() bool {
	for _, candidate := range validRmaPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseRmaPriority converts raw input into an RmaPriority.
func ParseRmaPriority(value string) (RmaPriority, error) {
	for _, candidate := range validRmaPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rma priority %q", value)
}
