package enums

import "fmt"

// HarvestStatus mirrors whether a listing still has stock.
type HarvestStatus string

const (
	HarvestStatusAvailable HarvestStatus = "available"
	HarvestStatusSoldOut   HarvestStatus = "sold_out"
)

var validHarvestStatuses = []HarvestStatus{
	HarvestStatusAvailable,
	HarvestStatusSoldOut,
}

// String implements fmt.Stringer.
func (h HarvestStatus) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HarvestStatus.
func (h HarvestStatus) IsValid() bool {
	for _, candidate := range validHarvestStatuses {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHarvestStatus converts raw input into a HarvestStatus.
func ParseHarvestStatus(value string) (HarvestStatus, error) {
	for _, candidate := range validHarvestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid harvest status %q", value)
}
