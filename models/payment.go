package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	MethodMTNMoney     PaymentMethod = "mtn_money"
	MethodOrangeMoney  PaymentMethod = "orange_money"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

type Payment struct {
	ID             string          `json:"id"`
	RegistrationID string          `json:"registration"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         PaymentMethod   `json:"payment_method"`
	Status         PaymentStatus   `json:"status"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	BillingPhone   string          `json:"billing_phone,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// paymentTransitions lists the reachable statuses from each status. Terminal
// states (failed, refunded, cancelled) have no outgoing edges; a completed
// payment can only move to refunded.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentFailed, PaymentCancelled},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentCompleted:  {PaymentRefunded},
	PaymentFailed:     {},
	PaymentRefunded:   {},
	PaymentCancelled:  {},
}

// CanTransition reports whether a payment status may move from one status to
// another. A status never regresses: once a payment is processing it cannot
// become pending again, and terminal states stay terminal.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

// ParseMethod validates a payment method string from a request body.
func ParseMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case MethodMTNMoney, MethodOrangeMoney, MethodCreditCard, MethodBankTransfer:
		return PaymentMethod(s), true
	}
	return "", false
}

// IsMobileMoney reports whether the method goes through a telecom gateway.
func (m PaymentMethod) IsMobileMoney() bool {
	return m == MethodMTNMoney || m == MethodOrangeMoney
}
