package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionStatus(t *testing.T) {
	status, err := ParseTransactionStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusCompleted, status)
	assert.True(t, status.IsTerminal())
	assert.False(t, TransactionStatusPending.IsTerminal())

	_, err = ParseTransactionStatus("approved")
	assert.Error(t, err)
}

func TestTransactionDecisionTargetStatus(t *testing.T) {
	assert.Equal(t, TransactionStatusCompleted, TransactionDecisionApprove.TargetStatus())
	assert.Equal(t, TransactionStatusCancelled, TransactionDecisionReject.TargetStatus())
	assert.Equal(t, TransactionStatusCancelled, TransactionDecisionCancel.TargetStatus())
}

func TestParseUserType(t *testing.T) {
	role, err := ParseUserType("farmer")
	require.NoError(t, err)
	assert.True(t, role.IsSeller())
	assert.False(t, UserTypeBuyer.IsSeller())

	_, err = ParseUserType("Farmer")
	assert.Error(t, err)
}

func TestParseAnalyticsPeriodDefaultsToMonth(t *testing.T) {
	period, err := ParseAnalyticsPeriod("")
	require.NoError(t, err)
	assert.Equal(t, AnalyticsPeriodMonth, period)

	period, err = ParseAnalyticsPeriod(" Week ")
	require.NoError(t, err)
	assert.Equal(t, AnalyticsPeriodWeek, period)

	_, err = ParseAnalyticsPeriod("decade")
	assert.Error(t, err)
}

func TestOutboxEnums(t *testing.T) {
	assert.True(t, EventTransactionCancelled.IsValid())
	assert.False(t, OutboxEventType("order_created").IsValid())

	agg, err := ParseOutboxAggregateType("harvest")
	require.NoError(t, err)
	assert.Equal(t, AggregateHarvest, agg)
}
