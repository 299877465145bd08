package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eventez-payments/internal/services/gateway"
	"eventez-payments/internal/status"
	"eventez-payments/internal/store"
	"eventez-payments/models"
	"eventez-payments/monitoring"
	"eventez-payments/utils"
)

const notifTokenTTL = 24 * time.Hour

// Caller identifies who is asking. Operators bypass the registration
// ownership check.
type Caller struct {
	ID         string
	IsOperator bool
}

// ProcessRequest is the body of POST /api/payments/process.
type ProcessRequest struct {
	PaymentID   string `json:"payment_id"`
	Method      string `json:"method"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ProcessResult is what the customer's UI needs to continue: the payment
// status, the provider reference, and for redirect flows the payment page.
type ProcessResult struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentURL    string `json:"payment_url,omitempty"`
	Message       string `json:"message,omitempty"`
}

// PaymentService owns the payment lifecycle: initiation, verification,
// settlement and the manual re-check path.
type PaymentService struct {
	store      store.RecordStore
	redis      *redis.Client
	gateways   *gateway.Registry
	settlement *SettlementService
	notifier   Notifier
	clock      Clock

	currency       string
	verifyInterval time.Duration
	verifyWindow   time.Duration
	sessionTTL     time.Duration

	mu    sync.Mutex
	loops map[string]*Verification
}

type PaymentServiceOpts struct {
	Currency       string
	VerifyInterval time.Duration
	VerifyWindow   time.Duration
	SessionTTL     time.Duration
}

func NewPaymentService(
	recordStore store.RecordStore,
	redisClient *redis.Client,
	gateways *gateway.Registry,
	settlement *SettlementService,
	notifier Notifier,
	opts PaymentServiceOpts,
) *PaymentService {
	return &PaymentService{
		store:          recordStore,
		redis:          redisClient,
		gateways:       gateways,
		settlement:     settlement,
		notifier:       notifier,
		clock:          SystemClock,
		currency:       opts.Currency,
		verifyInterval: opts.VerifyInterval,
		verifyWindow:   opts.VerifyWindow,
		sessionTTL:     opts.SessionTTL,
		loops:          make(map[string]*Verification),
	}
}

// ProcessPayment validates the request, charges through the chosen method and
// returns what the UI needs to continue. Mobile money is asynchronous: the
// payment moves to processing and a verification loop polls the gateway.
func (s *PaymentService) ProcessPayment(ctx context.Context, caller Caller, req *ProcessRequest) (*ProcessResult, error) {
	if req.PaymentID == "" {
		return nil, fmt.Errorf("%w: payment_id is required", status.ErrInvalidInput)
	}
	method, ok := models.ParseMethod(req.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %q", status.ErrUnsupportedMethod, req.Method)
	}
	if method.IsMobileMoney() && req.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: phone_number is required for %s", status.ErrInvalidInput, method)
	}

	payment, reg, err := s.authorize(ctx, caller, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentPending {
		return nil, fmt.Errorf("ProcessPayment: payment %s is %s: %w", payment.ID, payment.Status, status.ErrBadTransition)
	}

	switch method {
	case models.MethodMTNMoney, models.MethodOrangeMoney:
		return s.processMobileMoney(ctx, payment, reg, method, req.PhoneNumber)
	case models.MethodCreditCard:
		return s.processCreditCard(ctx, payment)
	case models.MethodBankTransfer:
		return s.processBankTransfer(payment)
	default:
		return nil, fmt.Errorf("%w: %q", status.ErrUnsupportedMethod, req.Method)
	}
}

func (s *PaymentService) processMobileMoney(ctx context.Context, payment *models.Payment, reg *models.Registration, method models.PaymentMethod, phone string) (*ProcessResult, error) {
	gw, ok := s.gateways.Get(gateway.Provider(method))
	if !ok {
		return nil, fmt.Errorf("%w: %s gateway not configured", status.ErrUnsupportedMethod, method)
	}

	// The statement message shows the event name when it resolves; a missing
	// event never blocks a charge.
	message := fmt.Sprintf("EventEz tickets %s", reg.ID)
	if event, err := s.store.GetEvent(ctx, reg.EventID); err == nil {
		message = fmt.Sprintf("EventEz: %s", event.Name)
	}

	result := gw.Initiate(ctx, &gateway.InitiateRequest{
		PhoneNumber: phone,
		Amount:      payment.Amount,
		Currency:    s.currency,
		ExternalID:  uuid.NewString(),
		Message:     message,
	})

	if result.Status == status.Failed {
		monitoring.RecordInitiation(string(method), "failed")
		err := s.store.UpdatePayment(ctx, payment.ID, store.Fields{
			"status":         string(models.PaymentFailed),
			"failure_reason": result.Reason,
			"billing_phone":  phone,
		})
		if err != nil {
			return nil, fmt.Errorf("processMobileMoney: mark failed: %w", err)
		}
		s.notifier.PaymentUpdate(reg.UserID, map[string]any{
			"payment_id": payment.ID,
			"status":     string(models.PaymentFailed),
			"reason":     result.Reason,
		})
		return &ProcessResult{
			ID:      payment.ID,
			Status:  string(models.PaymentFailed),
			Message: result.Reason,
		}, nil
	}

	err := s.store.UpdatePayment(ctx, payment.ID, store.Fields{
		"status":         string(models.PaymentProcessing),
		"transaction_id": result.ProviderRef,
		"billing_phone":  phone,
	})
	if err != nil {
		return nil, fmt.Errorf("processMobileMoney: mark processing: %w", err)
	}

	s.cacheSession(ctx, payment.ID, map[string]any{
		"status":         string(models.PaymentProcessing),
		"payment_method": string(method),
		"transaction_id": result.ProviderRef,
		"payment_url":    result.PaymentURL,
	})
	if result.NotifToken != "" {
		key := fmt.Sprintf("notif:%s", result.NotifToken)
		if err := s.redis.Set(ctx, key, payment.ID, notifTokenTTL).Err(); err != nil {
			log.Printf("processMobileMoney: cache notif token for %s: %v", payment.ID, err)
		}
	}

	monitoring.RecordInitiation(string(method), "processing")
	s.StartVerification(payment.ID, reg.UserID, method, gw, result.ProviderRef)

	message = "Approve the payment prompt on your phone"
	if result.PaymentURL != "" {
		message = "Complete the payment on the Orange Money page"
	}
	return &ProcessResult{
		ID:            payment.ID,
		Status:        string(models.PaymentProcessing),
		TransactionID: result.ProviderRef,
		PaymentURL:    result.PaymentURL,
		Message:       message,
	}, nil
}

// processCreditCard simulates a synchronous card charge: no acquirer is
// wired, so the charge always succeeds and settles inline.
func (s *PaymentService) processCreditCard(ctx context.Context, payment *models.Payment) (*ProcessResult, error) {
	code, err := utils.GenerateCode(8)
	if err != nil {
		return nil, fmt.Errorf("processCreditCard: %w", err)
	}
	txID := "CC-" + code

	err = s.store.UpdatePayment(ctx, payment.ID, store.Fields{
		"status": string(models.PaymentProcessing),
	})
	if err != nil {
		return nil, fmt.Errorf("processCreditCard: mark processing: %w", err)
	}
	if err := s.settlement.Settle(ctx, payment.ID, txID); err != nil {
		return nil, fmt.Errorf("processCreditCard: %w", err)
	}

	monitoring.RecordInitiation(string(models.MethodCreditCard), "completed")
	return &ProcessResult{
		ID:            payment.ID,
		Status:        string(models.PaymentCompleted),
		TransactionID: txID,
		Message:       "Payment completed",
	}, nil
}

// processBankTransfer leaves the payment pending; an operator confirms the
// wire manually and settles through the admin surface.
func (s *PaymentService) processBankTransfer(payment *models.Payment) (*ProcessResult, error) {
	monitoring.RecordInitiation(string(models.MethodBankTransfer), "pending")
	return &ProcessResult{
		ID:     payment.ID,
		Status: string(models.PaymentPending),
		Message: fmt.Sprintf(
			"Transfer %s %s to account EVENTEZ-COLLECT with reference %s",
			payment.Amount.StringFixed(0), s.currency, payment.ID),
	}, nil
}

// StartVerification launches the polling loop for a payment. A loop already
// running for the same payment is stopped first, so at most one loop polls a
// payment at a time.
func (s *PaymentService) StartVerification(paymentID, userID string, method models.PaymentMethod, gw gateway.Gateway, providerRef string) *Verification {
	v := &Verification{
		paymentID: paymentID,
		interval:  s.verifyInterval,
		deadline:  s.clock.Now().Add(s.verifyWindow),
		clock:     s.clock,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	v.check = func(ctx context.Context) *gateway.StatusResult {
		monitoring.RecordVerificationTick(string(method))
		result := gw.CheckStatus(ctx, providerRef)
		s.cacheSession(ctx, paymentID, map[string]any{"provider_status": result.ProviderStatus})
		return result
	}
	v.settle = func(ctx context.Context, result *gateway.StatusResult) error {
		txID := result.FinancialTxID
		if txID == "" {
			txID = providerRef
		}
		return s.settlement.Settle(ctx, paymentID, txID)
	}
	v.fail = func(ctx context.Context, reason string) {
		err := s.store.UpdatePayment(ctx, paymentID, store.Fields{
			"status":         string(models.PaymentFailed),
			"failure_reason": reason,
		})
		if err != nil {
			log.Printf("verification %s: mark failed: %v", paymentID, err)
		}
	}
	v.cb = VerifyCallbacks{
		OnTick: func(attempt int) {
			s.notifier.PaymentUpdate(userID, map[string]any{
				"payment_id": paymentID,
				"status":     string(models.PaymentProcessing),
				"attempt":    attempt,
			})
		},
		OnSuccess: func(result *gateway.StatusResult) {
			s.cacheSession(context.Background(), paymentID, map[string]any{"status": string(models.PaymentCompleted)})
			s.notifier.PaymentUpdate(userID, map[string]any{
				"payment_id":     paymentID,
				"status":         string(models.PaymentCompleted),
				"transaction_id": result.FinancialTxID,
			})
		},
		OnFailure: func(reason string) {
			s.cacheSession(context.Background(), paymentID, map[string]any{"status": string(models.PaymentFailed)})
			s.notifier.PaymentUpdate(userID, map[string]any{
				"payment_id": paymentID,
				"status":     string(models.PaymentFailed),
				"reason":     reason,
			})
		},
		OnTimeout: func() {
			// The payment stays processing; the customer can trigger a manual
			// re-check once the operator network catches up.
			s.notifier.PaymentUpdate(userID, map[string]any{
				"payment_id": paymentID,
				"status":     string(models.PaymentProcessing),
				"timed_out":  true,
			})
		},
	}
	v.onFinish = func(finished *Verification) {
		s.mu.Lock()
		if s.loops[paymentID] == finished {
			delete(s.loops, paymentID)
		}
		s.mu.Unlock()
		monitoring.VerificationFinished()
		monitoring.RecordVerificationOutcome(string(method), finished.State().String())
	}

	s.mu.Lock()
	if prev, ok := s.loops[paymentID]; ok {
		prev.Stop()
	}
	s.loops[paymentID] = v
	s.mu.Unlock()

	monitoring.VerificationStarted()
	go v.run(context.Background())
	return v
}

// StopVerification cancels the loop for a payment, if any. Safe to call for
// payments with no active loop.
func (s *PaymentService) StopVerification(paymentID string) {
	s.mu.Lock()
	v, ok := s.loops[paymentID]
	s.mu.Unlock()
	if ok {
		v.Stop()
	}
}

// Shutdown stops every active loop and waits for them to drain.
func (s *PaymentService) Shutdown() {
	s.mu.Lock()
	active := make([]*Verification, 0, len(s.loops))
	for _, v := range s.loops {
		active = append(active, v)
	}
	s.mu.Unlock()

	for _, v := range active {
		v.Stop()
		<-v.done
	}
}

// Recheck runs the check/act path once, outside the loop. It settles a
// payment the loop missed (timeout) and marks a failure the loop missed.
func (s *PaymentService) Recheck(ctx context.Context, caller Caller, paymentID string) (*ProcessResult, error) {
	payment, _, err := s.authorize(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}
	return s.recheckPayment(ctx, payment)
}

func (s *PaymentService) recheckPayment(ctx context.Context, payment *models.Payment) (*ProcessResult, error) {
	res := &ProcessResult{
		ID:            payment.ID,
		Status:        string(payment.Status),
		TransactionID: payment.TransactionID,
	}

	if payment.Status != models.PaymentProcessing || !payment.Method.IsMobileMoney() {
		return res, nil
	}

	gw, ok := s.gateways.Get(gateway.Provider(payment.Method))
	if !ok {
		return nil, fmt.Errorf("%w: %s gateway not configured", status.ErrUnsupportedMethod, payment.Method)
	}

	result := gw.CheckStatus(ctx, payment.TransactionID)
	switch result.Status {
	case status.Successful:
		txID := result.FinancialTxID
		if txID == "" {
			txID = payment.TransactionID
		}
		if err := s.settlement.Settle(ctx, payment.ID, txID); err != nil {
			return nil, fmt.Errorf("recheckPayment: %w", err)
		}
		s.StopVerification(payment.ID)
		res.Status = string(models.PaymentCompleted)
		res.Message = "Payment completed"
	case status.Failed:
		err := s.store.UpdatePayment(ctx, payment.ID, store.Fields{
			"status":         string(models.PaymentFailed),
			"failure_reason": result.Reason,
		})
		if err != nil {
			return nil, fmt.Errorf("recheckPayment: mark failed: %w", err)
		}
		s.StopVerification(payment.ID)
		res.Status = string(models.PaymentFailed)
		res.Message = result.Reason
	default:
		res.Message = "Payment still pending with the provider"
	}
	return res, nil
}

// GetPayment returns a payment the caller is allowed to see.
func (s *PaymentService) GetPayment(ctx context.Context, caller Caller, paymentID string) (*models.Payment, error) {
	payment, _, err := s.authorize(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Cancel abandons a payment that was never submitted to a provider.
func (s *PaymentService) Cancel(ctx context.Context, caller Caller, paymentID string) error {
	payment, _, err := s.authorize(ctx, caller, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentPending {
		return fmt.Errorf("Cancel: payment %s is %s: %w", paymentID, payment.Status, status.ErrBadTransition)
	}
	err = s.store.UpdatePayment(ctx, paymentID, store.Fields{
		"status": string(models.PaymentCancelled),
	})
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	return nil
}

// Refund reverses a completed payment and stops any straggling loop.
func (s *PaymentService) Refund(ctx context.Context, paymentID, reason string) error {
	s.StopVerification(paymentID)
	return s.settlement.Refund(ctx, paymentID, reason)
}

// HandleOrangeNotification resolves the webhook's notif_token to a payment
// and re-enters the check/act path. The pushed status is a hint only: the
// gateway is always re-queried before settling.
func (s *PaymentService) HandleOrangeNotification(ctx context.Context, notifToken string) error {
	key := fmt.Sprintf("notif:%s", notifToken)
	paymentID, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("%w: unknown notif token", status.ErrPaymentNotFound)
	}
	if err != nil {
		return fmt.Errorf("HandleOrangeNotification: %w", err)
	}

	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if _, err := s.recheckPayment(ctx, payment); err != nil {
		return err
	}
	return nil
}

// Simulate forces a provider outcome for a processing payment. Development
// only; the route is not registered in production.
func (s *PaymentService) Simulate(ctx context.Context, paymentID, providerStatus string) (*ProcessResult, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	normalized := status.Normalize(string(payment.Method), providerStatus)
	res := &ProcessResult{ID: paymentID, Status: string(payment.Status)}

	switch normalized {
	case status.Successful:
		code, err := utils.GenerateCode(8)
		if err != nil {
			return nil, fmt.Errorf("Simulate: %w", err)
		}
		if err := s.settlement.Settle(ctx, paymentID, "SIM-"+code); err != nil {
			return nil, err
		}
		s.StopVerification(paymentID)
		res.Status = string(models.PaymentCompleted)
	case status.Failed:
		err := s.store.UpdatePayment(ctx, paymentID, store.Fields{
			"status":         string(models.PaymentFailed),
			"failure_reason": fmt.Sprintf("simulated %s", providerStatus),
		})
		if err != nil {
			return nil, err
		}
		s.StopVerification(paymentID)
		res.Status = string(models.PaymentFailed)
	default:
		res.Message = fmt.Sprintf("provider status %s is not terminal", providerStatus)
	}
	return res, nil
}

// authorize loads the payment with its registration and enforces ownership.
func (s *PaymentService) authorize(ctx context.Context, caller Caller, paymentID string) (*models.Payment, *models.Registration, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	reg, err := s.store.GetRegistration(ctx, payment.RegistrationID)
	if err != nil {
		return nil, nil, err
	}
	if !caller.IsOperator && reg.UserID != caller.ID {
		return nil, nil, fmt.Errorf("%w: payment %s", status.ErrForbidden, paymentID)
	}
	return payment, reg, nil
}

// cacheSession mirrors payment progress into a redis hash the UI can read
// between ticks without hitting the record store.
func (s *PaymentService) cacheSession(ctx context.Context, paymentID string, fields map[string]any) {
	key := fmt.Sprintf("payment:%s", paymentID)
	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("cacheSession %s: %v", paymentID, err)
	}
}
