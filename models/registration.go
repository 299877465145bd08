package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationCompleted RegistrationStatus = "completed"
)

type RegistrationPaymentStatus string

const (
	RegistrationUnpaid   RegistrationPaymentStatus = "unpaid"
	RegistrationPaid     RegistrationPaymentStatus = "paid"
	RegistrationRefunded RegistrationPaymentStatus = "refunded"
)

type Registration struct {
	ID            string                    `json:"id"`
	EventID       string                    `json:"event"`
	UserID        string                    `json:"user"`
	Status        RegistrationStatus        `json:"status"`
	PaymentStatus RegistrationPaymentStatus `json:"payment_status"`
	ConfirmedAt   *time.Time                `json:"confirmed_at,omitempty"`
	Purchases     []TicketPurchase          `json:"ticket_purchases"`
}

// TicketPurchase is a line item of a registration. Immutable after creation;
// only check-in fields (handled elsewhere) change later.
type TicketPurchase struct {
	ID           string          `json:"id"`
	TicketTypeID string          `json:"ticket_type"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}
