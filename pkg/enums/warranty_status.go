package enums

import "fmt"

// WarrantyStatus records what is known about a unit's warranty coverage.
type WarrantyStatus string

const (
	WarrantyStatusInWarranty    WarrantyStatus = "in_warranty"
	WarrantyStatusOutOfWarranty WarrantyStatus = "out_of_warranty"
	WarrantyStatusUnknown       WarrantyStatus = "unknown"
)

var validWarrantyStatuses = []WarrantyStatus{
	WarrantyStatusInWarranty,
	WarrantyStatusOutOfWarranty,
	WarrantyStatusUnknown,
}

// String implements fmt.Stringer.
func (w WarrantyStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WarrantyStatus.
func (w WarrantyStatus) IsValid() bool {
	for _, candidate := range validWarrantyStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// IsKnown reports whether coverage has been determined either way.
func (w WarrantyStatus) IsKnown() bool {
	return w == WarrantyStatusInWarranty || w == WarrantyStatusOutOfWarranty
}

// ParseWarrantyStatus converts raw input into a WarrantyStatus.
func ParseWarrantyStatus(value string) (WarrantyStatus, error) {
	for _, candidate := range validWarrantyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid warranty status %q", value)
}
