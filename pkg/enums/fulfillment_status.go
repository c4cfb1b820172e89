package enums

import "fmt"

// FulfillmentStatus tracks an item's progress from funded to delivered.
// Transitions only move forward except by explicit manual override.
type FulfillmentStatus string

const (
	FulfillmentStatusUnordered  FulfillmentStatus = "unordered"
	FulfillmentStatusPending    FulfillmentStatus = "pending"
	FulfillmentStatusProcessing FulfillmentStatus = "processing"
	FulfillmentStatusOrdered    FulfillmentStatus = "ordered"
	FulfillmentStatusShipped    FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered  FulfillmentStatus = "delivered"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusUnordered,
	FulfillmentStatusPending,
	FulfillmentStatusProcessing,
	FulfillmentStatusOrdered,
	FulfillmentStatusShipped,
	FulfillmentStatusDelivered,
}

var fulfillmentRank = map[FulfillmentStatus]int{
	FulfillmentStatusUnordered:  0,
	FulfillmentStatusPending:    1,
	FulfillmentStatusProcessing: 2,
	FulfillmentStatusOrdered:    3,
	FulfillmentStatusShipped:    4,
	FulfillmentStatusDelivered:  5,
}

// String implements fmt.Stringer.
func (f FulfillmentStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (f FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// CanAdvanceTo reports whether moving to next is a forward transition.
func (f FulfillmentStatus) CanAdvanceTo(next FulfillmentStatus) bool {
	from, ok := fulfillmentRank[f]
	if !ok {
		return false
	}
	to, ok := fulfillmentRank[next]
	if !ok {
		return false
	}
	return to > from
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}
