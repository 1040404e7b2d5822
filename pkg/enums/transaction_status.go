package enums

import "fmt"

// TransactionStatus tracks the approval lifecycle of a purchase.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusCancelled,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusCancelled
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// TransactionDecision is the action a seller takes on a pending transaction.
type TransactionDecision string

const (
	TransactionDecisionApprove TransactionDecision = "approve"
	TransactionDecisionReject  TransactionDecision = "reject"
	TransactionDecisionCancel  TransactionDecision = "cancel"
)

// TargetStatus returns the status a decision moves a pending transaction to.
func (d TransactionDecision) TargetStatus() TransactionStatus {
	if d == TransactionDecisionApprove {
		return TransactionStatusCompleted
	}
	return TransactionStatusCancelled
}
