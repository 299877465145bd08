package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"eventez-payments/internal/services"
	"eventez-payments/internal/status"
	"eventez-payments/models"
	"eventez-payments/security"
	"eventez-payments/utils"
)

type PaymentHandler struct {
	app             *pocketbase.PocketBase
	paymentService  *services.PaymentService
	rateLimiter     *security.RateLimiter
	operatorKeyHash string
}

func NewPaymentHandler(app *pocketbase.PocketBase, paymentService *services.PaymentService, rateLimiter *security.RateLimiter, operatorKeyHash string) *PaymentHandler {
	return &PaymentHandler{
		app:             app,
		paymentService:  paymentService,
		rateLimiter:     rateLimiter,
		operatorKeyHash: operatorKeyHash,
	}
}

// ProcessPayment - POST /api/payments/process
func (h *PaymentHandler) ProcessPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	if !h.rateLimiter.Allow(e.Request.Context(), fmt.Sprintf("user:%s", e.Auth.Id)) {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Too many payment attempts. Please try again later.",
		})
	}

	var req services.ProcessRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	result, err := h.paymentService.ProcessPayment(e.Request.Context(), callerFrom(e), &req)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": succeeded(result),
		"data":    result,
	})
}

// PollPayment - GET /api/payments/process?id=
// Re-enters the check/act path once; settles the payment if the provider now
// reports success.
func (h *PaymentHandler) PollPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	paymentID := e.Request.URL.Query().Get("id")
	if paymentID == "" {
		return apis.NewBadRequestError("id query parameter is required", nil)
	}

	result, err := h.paymentService.Recheck(e.Request.Context(), callerFrom(e), paymentID)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    result,
	})
}

// GetPaymentDetails - GET /api/payments/{paymentId}
func (h *PaymentHandler) GetPaymentDetails(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	paymentID := e.Request.PathValue("paymentId")
	payment, err := h.paymentService.GetPayment(e.Request.Context(), callerFrom(e), paymentID)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, payment)
}

// CancelPayment - POST /api/payments/{paymentId}/cancel
func (h *PaymentHandler) CancelPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	paymentID := e.Request.PathValue("paymentId")
	if err := h.paymentService.Cancel(e.Request.Context(), callerFrom(e), paymentID); err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment cancelled"})
}

// RefundPayment - POST /api/payments/{paymentId}/refund
// Operator action gated by a shared key checked against a bcrypt hash.
func (h *PaymentHandler) RefundPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		OperatorKey string `json:"operator_key"`
		Reason      string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if h.operatorKeyHash == "" || !utils.CompareHash(h.operatorKeyHash, req.OperatorKey) {
		return apis.NewForbiddenError("Invalid operator key", nil)
	}

	paymentID := e.Request.PathValue("paymentId")
	if err := h.paymentService.Refund(e.Request.Context(), paymentID, req.Reason); err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment refunded"})
}

// OrangeNotify - POST /api/payments/orange/notify
// Orange's server-to-server webhook. Unauthenticated; the notif_token issued
// at session creation is the credential.
func (h *PaymentHandler) OrangeNotify(e *core.RequestEvent) error {
	var req struct {
		NotifToken string `json:"notif_token"`
		Status     string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.NotifToken == "" {
		return apis.NewBadRequestError("notif_token is required", nil)
	}

	if err := h.paymentService.HandleOrangeNotification(e.Request.Context(), req.NotifToken); err != nil {
		if errors.Is(err, status.ErrPaymentNotFound) {
			return apis.NewNotFoundError("Unknown notification token", nil)
		}
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "OK"})
}

// SimulateGateway - POST /api/test/simulate-gateway (development only)
func (h *PaymentHandler) SimulateGateway(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.PaymentID == "" || req.Status == "" {
		return apis.NewBadRequestError("payment_id and status are required", nil)
	}

	result, err := h.paymentService.Simulate(e.Request.Context(), req.PaymentID, req.Status)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    result,
	})
}

// succeeded reports whether a process result goes out with a success flag.
// A declined initiation is returned in-band as a failed result, not an error.
func succeeded(result *services.ProcessResult) bool {
	return result.Status != string(models.PaymentFailed)
}

// callerFrom extracts the caller identity from the request auth record.
func callerFrom(e *core.RequestEvent) services.Caller {
	return services.Caller{
		ID:         e.Auth.Id,
		IsOperator: e.Auth.IsSuperuser(),
	}
}

// mapServiceError translates service sentinels into HTTP errors.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, status.ErrInvalidInput),
		errors.Is(err, status.ErrUnsupportedMethod),
		errors.Is(err, status.ErrBadTransition):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrPaymentNotFound):
		return apis.NewNotFoundError("Payment not found", nil)
	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError("Access denied", nil)
	default:
		slog.Error("payment service", "error", err)
		return apis.NewApiError(http.StatusInternalServerError, "Payment processing failed", err)
	}
}
