// Package store is the persistence boundary of the payment core. The
// payment, registration and ticket-type records live in PocketBase
// collections; everything above this package talks to them through the
// RecordStore interface with read/patch semantics.
package store

import (
	"context"

	"eventez-payments/models"
)

// Fields is a partial update applied to a record.
type Fields map[string]any

type RecordStore interface {
	GetPayment(ctx context.Context, id string) (*models.Payment, error)

	// UpdatePayment patches payment fields. A "status" field is validated
	// against the payment state machine: transitions never regress.
	UpdatePayment(ctx context.Context, id string, fields Fields) error

	// GetRegistration fetches a registration with its ticket purchase line
	// items.
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)

	UpdateRegistration(ctx context.Context, id string, fields Fields) error

	GetEvent(ctx context.Context, id string) (*models.Event, error)

	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)

	// IncrementTicketSold atomically adds qty to a ticket type's sold
	// counter, refusing to exceed quantity_total.
	IncrementTicketSold(ctx context.Context, ticketTypeID string, qty int) error

	// DecrementTicketSold atomically subtracts qty from a ticket type's sold
	// counter, refusing to go below zero. Used by refunds.
	DecrementTicketSold(ctx context.Context, ticketTypeID string, qty int) error
}
