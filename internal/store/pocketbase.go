package store

import (
	"context"
	"fmt"

	"eventez-payments/internal/status"
	"eventez-payments/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

var _ RecordStore = (*PocketBaseStore)(nil)

// PocketBaseStore persists records in the application's PocketBase
// collections (see migrations/).
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	record, err := s.app.FindRecordById("payments", id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", status.ErrPaymentNotFound, id)
	}

	p := &models.Payment{
		ID:             record.Id,
		RegistrationID: record.GetString("registration"),
		Amount:         decimal.NewFromFloat(record.GetFloat("amount")),
		Currency:       record.GetString("currency"),
		Method:         models.PaymentMethod(record.GetString("payment_method")),
		Status:         models.PaymentStatus(record.GetString("status")),
		TransactionID:  record.GetString("transaction_id"),
		BillingPhone:   record.GetString("billing_phone"),
		FailureReason:  record.GetString("failure_reason"),
		CreatedAt:      record.GetDateTime("created").Time(),
	}
	if d := record.GetDateTime("payment_date"); !d.IsZero() {
		t := d.Time()
		p.PaymentDate = &t
	}
	return p, nil
}

func (s *PocketBaseStore) UpdatePayment(ctx context.Context, id string, fields Fields) error {
	record, err := s.app.FindRecordById("payments", id)
	if err != nil {
		return fmt.Errorf("%w: %s", status.ErrPaymentNotFound, id)
	}

	if raw, ok := fields["status"]; ok {
		from := models.PaymentStatus(record.GetString("status"))
		to := models.PaymentStatus(fmt.Sprint(raw))
		if !models.CanTransition(from, to) {
			return fmt.Errorf("updatePayment %s: %w: %s -> %s", id, status.ErrBadTransition, from, to)
		}
	}

	for k, v := range fields {
		record.Set(k, v)
	}
	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("updatePayment %s: %w", id, err)
	}
	return nil
}

func (s *PocketBaseStore) GetRegistration(_ context.Context, id string) (*models.Registration, error) {
	record, err := s.app.FindRecordById("registrations", id)
	if err != nil {
		return nil, fmt.Errorf("getRegistration %s: %w", id, err)
	}

	r := &models.Registration{
		ID:            record.Id,
		EventID:       record.GetString("event"),
		UserID:        record.GetString("user"),
		Status:        models.RegistrationStatus(record.GetString("status")),
		PaymentStatus: models.RegistrationPaymentStatus(record.GetString("payment_status")),
	}
	if d := record.GetDateTime("confirmed_at"); !d.IsZero() {
		t := d.Time()
		r.ConfirmedAt = &t
	}

	purchases, err := s.app.FindRecordsByFilter(
		"ticket_purchases",
		"registration = {:registrationId}",
		"created",
		0,
		0,
		dbx.Params{"registrationId": id},
	)
	if err != nil {
		return nil, fmt.Errorf("getRegistration %s: purchases: %w", id, err)
	}
	for _, p := range purchases {
		r.Purchases = append(r.Purchases, models.TicketPurchase{
			ID:           p.Id,
			TicketTypeID: p.GetString("ticket_type"),
			Quantity:     p.GetInt("quantity"),
			UnitPrice:    decimal.NewFromFloat(p.GetFloat("unit_price")),
			TotalPrice:   decimal.NewFromFloat(p.GetFloat("total_price")),
		})
	}

	return r, nil
}

func (s *PocketBaseStore) UpdateRegistration(ctx context.Context, id string, fields Fields) error {
	record, err := s.app.FindRecordById("registrations", id)
	if err != nil {
		return fmt.Errorf("updateRegistration %s: %w", id, err)
	}

	for k, v := range fields {
		record.Set(k, v)
	}
	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("updateRegistration %s: %w", id, err)
	}
	return nil
}

func (s *PocketBaseStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	record, err := s.app.FindRecordById("events", id)
	if err != nil {
		return nil, fmt.Errorf("getEvent %s: %w", id, err)
	}

	return &models.Event{
		ID:          record.Id,
		Name:        record.GetString("name"),
		Description: record.GetString("description"),
		Venue:       record.GetString("venue"),
		StartTime:   record.GetDateTime("start_time").Time(),
		EndTime:     record.GetDateTime("end_time").Time(),
		Status:      record.GetString("status"),
	}, nil
}

func (s *PocketBaseStore) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	record, err := s.app.FindRecordById("ticket_types", id)
	if err != nil {
		return nil, fmt.Errorf("getTicketType %s: %w", id, err)
	}

	return &models.TicketType{
		ID:            record.Id,
		EventID:       record.GetString("event"),
		Name:          record.GetString("name"),
		Price:         decimal.NewFromFloat(record.GetFloat("price")),
		QuantityTotal: record.GetInt("quantity_total"),
		QuantitySold:  record.GetInt("quantity_sold"),
	}, nil
}

// IncrementTicketSold bumps the sold counter in a single SQL statement so
// concurrent settlements cannot lose updates, and refuses to oversell.
func (s *PocketBaseStore) IncrementTicketSold(_ context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("incrementTicketSold %s: invalid quantity %d", ticketTypeID, qty)
	}

	res, err := s.app.DB().NewQuery(
		"UPDATE ticket_types SET quantity_sold = quantity_sold + {:qty} WHERE id = {:id} AND quantity_sold + {:qty} <= quantity_total",
	).Bind(dbx.Params{"qty": qty, "id": ticketTypeID}).Execute()
	if err != nil {
		return fmt.Errorf("incrementTicketSold %s: %w", ticketTypeID, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("incrementTicketSold %s: sold out or unknown ticket type", ticketTypeID)
	}
	return nil
}

// DecrementTicketSold reverses an inventory increment (refunds), never going
// below zero.
func (s *PocketBaseStore) DecrementTicketSold(_ context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("decrementTicketSold %s: invalid quantity %d", ticketTypeID, qty)
	}

	res, err := s.app.DB().NewQuery(
		"UPDATE ticket_types SET quantity_sold = quantity_sold - {:qty} WHERE id = {:id} AND quantity_sold >= {:qty}",
	).Bind(dbx.Params{"qty": qty, "id": ticketTypeID}).Execute()
	if err != nil {
		return fmt.Errorf("decrementTicketSold %s: %w", ticketTypeID, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("decrementTicketSold %s: counter underflow or unknown ticket type", ticketTypeID)
	}
	return nil
}
