// Package orange integrates the Orange Money web payment API: oauth
// client-credentials exchange, payment session creation and status lookup.
package orange

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// PayForm carries the fields of one web payment session request.
type PayForm struct {
	OrderID   string
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// Session is an open web payment session.
type Session struct {
	PayToken   string
	PaymentURL string
	NotifToken string
}

// Transaction is the provider view of a web payment session.
type Transaction struct {
	PayToken string
	Status   string // INITIATED, PENDING, EXPIRED, SUCCESS, FAILED
	TxnID    string
	Reason   string
}

type WebPayment struct {
	client *client
}

// New returns a new WebPayment instance authenticated against the Orange API.
func New(ctx context.Context, cfg *Config) (*WebPayment, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.MerchantKey == "" {
		return nil, errors.New("orange: missing api credentials")
	}

	client := &client{
		baseURL:        cfg.BaseURL,
		merchantKey:    cfg.MerchantKey,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		returnURL:      cfg.ReturnURL,
		cancelURL:      cfg.CancelURL,
		notifURL:       cfg.NotifURL,

		// make a buffered channel to avoid blocking.
		toggleTokenRefresher: make(chan struct{}, 1),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	go client.notifyAccessTokenExpired(ctx)

	return &WebPayment{client: client}, nil
}

// InitPayment opens a payment session for the order.
func (o *WebPayment) InitPayment(ctx context.Context, f *PayForm) (*Session, error) {
	return o.client.initWebPayment(ctx, f)
}

// CheckTransaction checks the status of a payment session.
func (o *WebPayment) CheckTransaction(ctx context.Context, payToken string) (*Transaction, error) {
	return o.client.checkTransaction(ctx, payToken)
}
