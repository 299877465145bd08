package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"eventez-payments/internal/services/gateway/mtn"
	"eventez-payments/internal/status"
	"eventez-payments/monitoring"
	"eventez-payments/utils"
)

// MTNAdapter wraps the MTN collections client to conform to Gateway.
type MTNAdapter struct {
	client  *mtn.Collection
	breaker *utils.CircuitBreaker
}

// NewMTNAdapter creates a new MTN adapter.
func NewMTNAdapter(ctx context.Context, cfg *mtn.Config) (*MTNAdapter, error) {
	client, err := mtn.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MTN client: %w", err)
	}

	return &MTNAdapter{
		client:  client,
		breaker: utils.NewCircuitBreaker("mtn"),
	}, nil
}

func (a *MTNAdapter) Provider() Provider {
	return ProviderMTN
}

// Initiate submits a request-to-pay. Provider and transport failures are
// folded into a Failed result with a readable reason.
func (a *MTNAdapter) Initiate(ctx context.Context, req *InitiateRequest) *InitiateResult {
	form := &mtn.PayForm{
		Phone:    req.PhoneNumber,
		Amount:   req.Amount,
		Currency: req.Currency,
		Message:  req.Message,
	}

	start := time.Now()
	_, err := a.breaker.Execute(ctx, func() (any, error) {
		return nil, a.client.RequestToPay(ctx, req.ExternalID, form)
	})
	monitoring.ObserveGatewayCall(string(ProviderMTN), "initiate", time.Since(start))
	if err != nil {
		log.Printf("mtn initiate %s: %v", req.ExternalID, err)
		return &InitiateResult{Status: status.Failed, Reason: initiateReason(err)}
	}

	// An accepted request-to-pay is an asynchronous acknowledgment.
	return &InitiateResult{Status: status.Pending, ProviderRef: req.ExternalID}
}

// CheckStatus queries the request-to-pay status. Transport failures come back
// as Pending so the polling loop keeps retrying inside its window.
func (a *MTNAdapter) CheckStatus(ctx context.Context, providerRef string) *StatusResult {
	start := time.Now()
	res, err := a.breaker.Execute(ctx, func() (any, error) {
		return a.client.CheckTransaction(ctx, providerRef)
	})
	monitoring.ObserveGatewayCall(string(ProviderMTN), "check_status", time.Since(start))
	if err != nil {
		log.Printf("mtn check %s: %v", providerRef, err)
		return &StatusResult{Status: status.Pending, Reason: "status check unavailable"}
	}

	tx := res.(*mtn.Transaction)
	return &StatusResult{
		Status:         status.Normalize(string(ProviderMTN), tx.Status),
		ProviderStatus: tx.Status,
		FinancialTxID:  tx.FinancialTxID,
		Reason:         tx.Reason,
	}
}
