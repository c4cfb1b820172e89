package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateDonation         OutboxAggregateType = "donation"
	AggregateFundableItem     OutboxAggregateType = "fundable_item"
	AggregateFulfillmentOrder OutboxAggregateType = "fulfillment_order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDonation,
	AggregateFundableItem,
	AggregateFulfillmentOrder,
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
	EventDonationRecorded OutboxEventType = "donation_recorded"
	EventReceiptPending   OutboxEventType = "receipt_pending"
	EventItemFullyFunded  OutboxEventType = "item_fully_funded"
	EventOrderCreated     OutboxEventType = "order_created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDonationRecorded,
	EventReceiptPending,
	EventItemFullyFunded,
	EventOrderCreated,
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
