package models

import (
	"github.com/shopspring/decimal"
)

type TicketType struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	QuantityTotal int             `json:"quantity_total"`
	QuantitySold  int             `json:"quantity_sold"`
}

// Remaining returns the number of unsold tickets of this type.
func (t *TicketType) Remaining() int {
	return t.QuantityTotal - t.QuantitySold
}
