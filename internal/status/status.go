package status

import (
	"errors"
	"strings"
)

var (
	ErrFailedPayment      = errors.New("payment: payment failed")
	ErrPaymentNotFound    = errors.New("payment: payment not found")
	ErrInvalidInput       = errors.New("payment: invalid input")
	ErrForbidden          = errors.New("payment: access denied")
	ErrUnsupportedMethod  = errors.New("payment: unsupported payment method")
	ErrAlreadySettled     = errors.New("payment: already settled")
	ErrVerificationActive = errors.New("payment: verification already running")
	ErrBadTransition      = errors.New("payment: illegal status transition")
)

// Status is the canonical payment state every provider vocabulary is folded
// into.
type Status string

const (
	Pending    Status = "PENDING"
	Successful Status = "SUCCESSFUL"
	Failed     Status = "FAILED"
)

// statusTables maps each provider's raw status vocabulary onto the canonical
// one. Provider keys match the payment method strings used across the records.
var statusTables = map[string]map[string]Status{
	"mtn_money": {
		"SUCCESSFUL": Successful,
		"FAILED":     Failed,
		"REJECTED":   Failed,
		"TIMEOUT":    Failed,
		"PENDING":    Pending,
	},
	"orange_money": {
		"SUCCESS":    Successful,
		"SUCCESSFUL": Successful,
		"FAILED":     Failed,
		"EXPIRED":    Failed,
		"INITIATED":  Pending,
		"PENDING":    Pending,
	},
}

// Normalize folds a provider status string into the canonical status. The
// function is total: unknown providers or statuses come back as Pending so a
// polling loop keeps retrying instead of failing a transient state it does
// not recognize.
func Normalize(provider, providerStatus string) Status {
	table, ok := statusTables[provider]
	if !ok {
		return Pending
	}

	s, ok := table[strings.ToUpper(strings.TrimSpace(providerStatus))]
	if !ok {
		return Pending
	}
	return s
}
