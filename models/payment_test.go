package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	// forward edges
	assert.True(t, CanTransition(PaymentPending, PaymentProcessing))
	assert.True(t, CanTransition(PaymentPending, PaymentFailed))
	assert.True(t, CanTransition(PaymentPending, PaymentCancelled))
	assert.True(t, CanTransition(PaymentProcessing, PaymentCompleted))
	assert.True(t, CanTransition(PaymentProcessing, PaymentFailed))
	assert.True(t, CanTransition(PaymentCompleted, PaymentRefunded))

	// self transitions are no-ops, not regressions
	assert.True(t, CanTransition(PaymentProcessing, PaymentProcessing))

	// no regressions
	assert.False(t, CanTransition(PaymentProcessing, PaymentPending))
	assert.False(t, CanTransition(PaymentCompleted, PaymentProcessing))

	// refunded only from completed, cancelled only from pending
	assert.False(t, CanTransition(PaymentProcessing, PaymentRefunded))
	assert.False(t, CanTransition(PaymentPending, PaymentRefunded))
	assert.False(t, CanTransition(PaymentProcessing, PaymentCancelled))

	// terminal states stay terminal
	assert.False(t, CanTransition(PaymentFailed, PaymentProcessing))
	assert.False(t, CanTransition(PaymentCancelled, PaymentPending))
	assert.False(t, CanTransition(PaymentRefunded, PaymentCompleted))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, PaymentPending.IsTerminal())
	assert.False(t, PaymentProcessing.IsTerminal())
	assert.False(t, PaymentCompleted.IsTerminal())
	assert.True(t, PaymentFailed.IsTerminal())
	assert.True(t, PaymentRefunded.IsTerminal())
	assert.True(t, PaymentCancelled.IsTerminal())
}

func TestParseMethod(t *testing.T) {
	for _, valid := range []string{"mtn_money", "orange_money", "credit_card", "bank_transfer"} {
		m, ok := ParseMethod(valid)
		assert.True(t, ok)
		assert.Equal(t, PaymentMethod(valid), m)
	}

	for _, invalid := range []string{"", "paypal", "MTN_MONEY", "cash"} {
		_, ok := ParseMethod(invalid)
		assert.False(t, ok, invalid)
	}
}

func TestIsMobileMoney(t *testing.T) {
	assert.True(t, MethodMTNMoney.IsMobileMoney())
	assert.True(t, MethodOrangeMoney.IsMobileMoney())
	assert.False(t, MethodCreditCard.IsMobileMoney())
	assert.False(t, MethodBankTransfer.IsMobileMoney())
}
