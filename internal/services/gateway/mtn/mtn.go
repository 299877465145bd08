// Package mtn integrates the MTN Mobile Money collections API: token
// exchange, request-to-pay and transaction-status lookup.
package mtn

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// PayForm carries the fields of one request-to-pay.
type PayForm struct {
	Phone    string
	Amount   decimal.Decimal
	Currency string
	Message  string
}

// Transaction is the provider view of a request-to-pay.
type Transaction struct {
	ReferenceID   string
	Status        string // PENDING, SUCCESSFUL, FAILED
	FinancialTxID string
	Reason        string
}

type Collection struct {
	client *client
}

// New returns a new Collection instance authenticated against the MTN API.
func New(ctx context.Context, cfg *Config) (*Collection, error) {
	if cfg.SubscriptionKey == "" || cfg.APIUser == "" || cfg.APIKey == "" {
		return nil, errors.New("mtn: missing api credentials")
	}

	client := newClient(ctx, cfg)

	// Connect to the MTN API. Get access token.
	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	// Notify access token expired.
	go client.notifyAccessTokenExpired(ctx)

	return &Collection{client: client}, nil
}

// RequestToPay submits a request-to-pay under the given reference id. The
// reference id doubles as the status-polling handle.
func (m *Collection) RequestToPay(ctx context.Context, referenceID string, f *PayForm) error {
	return m.client.requestToPay(ctx, referenceID, f)
}

// CheckTransaction checks the status of a request-to-pay.
func (m *Collection) CheckTransaction(ctx context.Context, referenceID string) (*Transaction, error) {
	return m.client.getTransactionStatus(ctx, referenceID)
}
