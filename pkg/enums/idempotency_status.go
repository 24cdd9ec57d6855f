package enums

import "fmt"

// IdempotencyStatus tracks the lifecycle of a guarded request execution:
// in_progress while the first attempt runs, then completed or failed.
type IdempotencyStatus string

const (
	IdempotencyStatusInProgress IdempotencyStatus = "in_progress"
	IdempotencyStatusCompleted  IdempotencyStatus = "completed"
	IdempotencyStatusFailed     IdempotencyStatus = "failed"
)

var validIdempotencyStatuses = []IdempotencyStatus{
	IdempotencyStatusInProgress,
	IdempotencyStatusCompleted,
	IdempotencyStatusFailed,
}

// String implements fmt.Stringer.
func (s IdempotencyStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IdempotencyStatus.
func (s IdempotencyStatus) IsValid() bool {
	for _, candidate := range validIdempotencyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the record already stores a replayable response.
func (s IdempotencyStatus) IsTerminal() bool {
	return s == IdempotencyStatusCompleted || s == IdempotencyStatusFailed
}

// ParseIdempotencyStatus converts raw input into an IdempotencyStatus.
func ParseIdempotencyStatus(value string) (IdempotencyStatus, error) {
	for _, candidate := range validIdempotencyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid idempotency status %q", value)
}
