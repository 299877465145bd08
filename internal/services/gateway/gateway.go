package gateway

import (
	"context"

	"eventez-payments/internal/status"

	"github.com/shopspring/decimal"
)

// Provider identifies a telecom payment gateway. Values match the
// payment_method strings stored on payment records.
type Provider string

const (
	ProviderMTN    Provider = "mtn_money"
	ProviderOrange Provider = "orange_money"
)

// InitiateRequest is a generic request-to-pay across providers.
type InitiateRequest struct {
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExternalID  string          `json:"external_id"` // unique per payment attempt
	Message     string          `json:"message,omitempty"`
}

// InitiateResult is the normalized outcome of an initiation call. A gateway
// acknowledges asynchronously, so Status is Pending on success, never
// Successful.
type InitiateResult struct {
	Status      status.Status `json:"status"`
	ProviderRef string        `json:"provider_ref,omitempty"`
	PaymentURL  string        `json:"payment_url,omitempty"` // redirect flow (Orange)
	NotifToken  string        `json:"notif_token,omitempty"` // webhook validation (Orange)
	Reason      string        `json:"reason,omitempty"`
}

// StatusResult is the normalized outcome of a status check.
type StatusResult struct {
	Status         status.Status `json:"status"`
	ProviderStatus string        `json:"provider_status,omitempty"`
	FinancialTxID  string        `json:"financial_transaction_id,omitempty"`
	Reason         string        `json:"reason,omitempty"`
}

// Gateway hides a provider's proprietary protocol behind the two operations
// the payment core needs. Implementations never return transport or provider
// errors: those are folded into the result shape with a human-readable
// reason. Initiation failures come back as Failed; status-check failures come
// back as Pending so the verification loop keeps retrying until its own
// window expires.
type Gateway interface {
	// Provider returns the gateway provider type.
	Provider() Provider

	// Initiate asks the provider to charge the phone number and returns the
	// reference to poll with.
	Initiate(ctx context.Context, req *InitiateRequest) *InitiateResult

	// CheckStatus queries the provider's transaction-status endpoint.
	CheckStatus(ctx context.Context, providerRef string) *StatusResult
}

// Registry holds the configured gateways keyed by provider.
type Registry struct {
	gateways map[Provider]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[Provider]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Provider()] = g
	}
	return r
}

// Get returns the gateway for a provider, or false when none is registered.
func (r *Registry) Get(provider Provider) (Gateway, bool) {
	g, ok := r.gateways[provider]
	return g, ok
}

// Providers returns the registered provider types.
func (r *Registry) Providers() []Provider {
	providers := make([]Provider, 0, len(r.gateways))
	for p := range r.gateways {
		providers = append(providers, p)
	}
	return providers
}
