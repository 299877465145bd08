package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"eventez-payments/internal/services/gateway/orange"
	"eventez-payments/internal/status"
	"eventez-payments/monitoring"
	"eventez-payments/utils"
)

// OrangeAdapter wraps the Orange web payment client to conform to Gateway.
type OrangeAdapter struct {
	client  *orange.WebPayment
	breaker *utils.CircuitBreaker
}

// NewOrangeAdapter creates a new Orange adapter.
func NewOrangeAdapter(ctx context.Context, cfg *orange.Config) (*OrangeAdapter, error) {
	client, err := orange.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Orange client: %w", err)
	}

	return &OrangeAdapter{
		client:  client,
		breaker: utils.NewCircuitBreaker("orange"),
	}, nil
}

func (a *OrangeAdapter) Provider() Provider {
	return ProviderOrange
}

// Initiate opens a web payment session. The returned provider reference is
// the pay token used for status polling; the customer completes the payment
// on the returned payment page.
func (a *OrangeAdapter) Initiate(ctx context.Context, req *InitiateRequest) *InitiateResult {
	form := &orange.PayForm{
		OrderID:   req.ExternalID,
		Reference: req.Message,
		Amount:    req.Amount,
		Currency:  req.Currency,
	}

	start := time.Now()
	res, err := a.breaker.Execute(ctx, func() (any, error) {
		return a.client.InitPayment(ctx, form)
	})
	monitoring.ObserveGatewayCall(string(ProviderOrange), "initiate", time.Since(start))
	if err != nil {
		log.Printf("orange initiate %s: %v", req.ExternalID, err)
		return &InitiateResult{Status: status.Failed, Reason: initiateReason(err)}
	}

	session := res.(*orange.Session)
	return &InitiateResult{
		Status:      status.Pending,
		ProviderRef: session.PayToken,
		PaymentURL:  session.PaymentURL,
		NotifToken:  session.NotifToken,
	}
}

// CheckStatus queries the payment session status. Transport failures come
// back as Pending so the polling loop keeps retrying inside its window.
func (a *OrangeAdapter) CheckStatus(ctx context.Context, providerRef string) *StatusResult {
	start := time.Now()
	res, err := a.breaker.Execute(ctx, func() (any, error) {
		return a.client.CheckTransaction(ctx, providerRef)
	})
	monitoring.ObserveGatewayCall(string(ProviderOrange), "check_status", time.Since(start))
	if err != nil {
		log.Printf("orange check %s: %v", providerRef, err)
		return &StatusResult{Status: status.Pending, Reason: "status check unavailable"}
	}

	tx := res.(*orange.Transaction)
	result := &StatusResult{
		Status:         status.Normalize(string(ProviderOrange), tx.Status),
		ProviderStatus: tx.Status,
		FinancialTxID:  tx.TxnID,
	}
	if result.Status == status.Failed {
		result.Reason = failureReason(tx.Reason, tx.Status)
	}
	return result
}

// failureReason prefers the provider message and falls back to the raw
// provider status.
func failureReason(message, providerStatus string) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("payment %s", providerStatus)
}
