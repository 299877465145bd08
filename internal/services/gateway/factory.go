package gateway

import (
	"context"
	"fmt"
	"strings"

	"eventez-payments/internal/services/gateway/mtn"
	"eventez-payments/internal/services/gateway/orange"
)

// Factory creates gateway instances based on provider type.
type Factory struct{}

// NewFactory creates a new gateway factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a gateway instance based on provider type and configuration.
func (f *Factory) Create(ctx context.Context, provider Provider, config any) (Gateway, error) {
	switch provider {
	case ProviderMTN:
		mtnConfig, ok := config.(*mtn.Config)
		if !ok {
			return nil, fmt.Errorf("invalid MTN config type, expected *mtn.Config")
		}
		return NewMTNAdapter(ctx, mtnConfig)

	case ProviderOrange:
		orangeConfig, ok := config.(*orange.Config)
		if !ok {
			return nil, fmt.Errorf("invalid Orange config type, expected *orange.Config")
		}
		return NewOrangeAdapter(ctx, orangeConfig)

	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", provider)
	}
}

// SupportedProviders returns the providers the factory can create.
func (f *Factory) SupportedProviders() []Provider {
	return []Provider{ProviderMTN, ProviderOrange}
}

// initiateReason strips the internal call-chain prefixes off a client error,
// leaving the provider-sourced message for the customer.
func initiateReason(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return "payment could not be initiated"
	}
	return msg
}
