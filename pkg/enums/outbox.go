package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateHarvest     OutboxAggregateType = "harvest"
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateReview      OutboxAggregateType = "review"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateHarvest,
	AggregateTransaction,
	AggregateReview,
}

// IsValid reports whether the value matches a known aggregate type.
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

// OutboxEventType names a marketplace domain event.
type OutboxEventType string

const (
	EventHarvestCreated       OutboxEventType = "harvest_created"
	EventHarvestUpdated       OutboxEventType = "harvest_updated"
	EventHarvestDeleted       OutboxEventType = "harvest_deleted"
	EventTransactionCreated   OutboxEventType = "transaction_created"
	EventTransactionCompleted OutboxEventType = "transaction_completed"
	EventTransactionCancelled OutboxEventType = "transaction_cancelled"
	EventReviewCreated        OutboxEventType = "review_created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventHarvestCreated,
	EventHarvestUpdated,
	EventHarvestDeleted,
	EventTransactionCreated,
	EventTransactionCompleted,
	EventTransactionCancelled,
	EventReviewCreated,
}

// IsValid reports whether the value matches a known event type.
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
