package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"eventez-payments/internal/status"
	"eventez-payments/internal/store"
	"eventez-payments/models"
	"eventez-payments/monitoring"
)

const settlementGuardTTL = 24 * time.Hour

// SettlementService applies the one-time success side effects of a payment:
// mark it completed, confirm its registration, and move sold inventory.
type SettlementService struct {
	store store.RecordStore
	redis *redis.Client
	clock Clock
}

func NewSettlementService(recordStore store.RecordStore, redisClient *redis.Client) *SettlementService {
	return &SettlementService{
		store: recordStore,
		redis: redisClient,
		clock: SystemClock,
	}
}

// Settle finalizes a successful payment exactly once. Calling it again for
// an already-settled payment is a no-op, so the verification loop, a manual
// re-check and the Orange webhook can all race it safely.
func (s *SettlementService) Settle(ctx context.Context, paymentID, providerTxID string) error {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("Settle: get payment %s: %w", paymentID, err)
	}

	reg, err := s.store.GetRegistration(ctx, payment.RegistrationID)
	if err != nil {
		return fmt.Errorf("Settle: get registration %s: %w", payment.RegistrationID, err)
	}

	// Durable idempotency check: a completed payment on a paid registration
	// has already moved inventory.
	if payment.Status == models.PaymentCompleted && reg.PaymentStatus == models.RegistrationPaid {
		return nil
	}

	// Short-lived concurrency guard for callers racing within the window.
	guardKey := fmt.Sprintf("settlement:%s", paymentID)
	ok, err := s.redis.SetNX(ctx, guardKey, "1", settlementGuardTTL).Result()
	if err != nil {
		return fmt.Errorf("Settle: acquire guard for %s: %w", paymentID, err)
	}
	if !ok {
		// Another caller holds the settlement; treat as settled.
		return nil
	}

	now := s.clock.Now()
	err = s.store.UpdatePayment(ctx, paymentID, store.Fields{
		"status":         string(models.PaymentCompleted),
		"transaction_id": providerTxID,
		"payment_date":   now,
	})
	if err != nil {
		s.releaseGuard(ctx, guardKey)
		return fmt.Errorf("Settle: update payment %s: %w", paymentID, err)
	}

	err = s.store.UpdateRegistration(ctx, reg.ID, store.Fields{
		"status":         string(models.RegistrationConfirmed),
		"payment_status": string(models.RegistrationPaid),
		"confirmed_at":   now,
	})
	if err != nil {
		s.releaseGuard(ctx, guardKey)
		return fmt.Errorf("Settle: update registration %s: %w", reg.ID, err)
	}

	// Inventory moves per line item. A failed increment is logged and skipped
	// rather than failing the settlement: the money is already collected, and
	// ops reconciles quantity_sold from the purchase records.
	for _, p := range reg.Purchases {
		if err := s.store.IncrementTicketSold(ctx, p.TicketTypeID, p.Quantity); err != nil {
			log.Printf("Settle: payment %s: increment ticket type %s by %d: %v",
				paymentID, p.TicketTypeID, p.Quantity, err)
		}
	}

	monitoring.RecordSettlement(string(payment.Method))
	return nil
}

// Refund reverses a completed payment: the payment moves to refunded, the
// registration back to cancelled/refunded, and sold inventory is returned.
func (s *SettlementService) Refund(ctx context.Context, paymentID, reason string) error {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("Refund: get payment %s: %w", paymentID, err)
	}

	if payment.Status != models.PaymentCompleted {
		return fmt.Errorf("Refund: payment %s is %s: %w", paymentID, payment.Status, status.ErrBadTransition)
	}

	reg, err := s.store.GetRegistration(ctx, payment.RegistrationID)
	if err != nil {
		return fmt.Errorf("Refund: get registration %s: %w", payment.RegistrationID, err)
	}

	// The payment patch must come last: until it lands the payment stays
	// completed and the whole refund can be retried. The registration patch
	// is an idempotent field write on retry.
	err = s.store.UpdateRegistration(ctx, reg.ID, store.Fields{
		"status":         string(models.RegistrationCancelled),
		"payment_status": string(models.RegistrationRefunded),
	})
	if err != nil {
		return fmt.Errorf("Refund: update registration %s: %w", reg.ID, err)
	}

	err = s.store.UpdatePayment(ctx, paymentID, store.Fields{
		"status":         string(models.PaymentRefunded),
		"failure_reason": reason,
	})
	if err != nil {
		return fmt.Errorf("Refund: update payment %s: %w", paymentID, err)
	}

	for _, p := range reg.Purchases {
		if err := s.store.DecrementTicketSold(ctx, p.TicketTypeID, p.Quantity); err != nil {
			log.Printf("Refund: payment %s: decrement ticket type %s by %d: %v",
				paymentID, p.TicketTypeID, p.Quantity, err)
		}
	}

	monitoring.RecordRefund(string(payment.Method))
	return nil
}

func (s *SettlementService) releaseGuard(ctx context.Context, key string) {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		log.Printf("Settle: release guard %s: %v", key, err)
	}
}
