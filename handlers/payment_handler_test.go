package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventez-payments/internal/services"
	"eventez-payments/internal/status"
	"eventez-payments/models"
)

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *router.ApiError
	require.True(t, errors.As(err, &apiErr))
	return apiErr.Status
}

func TestSucceededFlag(t *testing.T) {
	assert.False(t, succeeded(&services.ProcessResult{Status: string(models.PaymentFailed)}))
	assert.True(t, succeeded(&services.ProcessResult{Status: string(models.PaymentProcessing)}))
	assert.True(t, succeeded(&services.ProcessResult{Status: string(models.PaymentPending)}))
}

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{status.ErrInvalidInput, http.StatusBadRequest},
		{status.ErrUnsupportedMethod, http.StatusBadRequest},
		{status.ErrBadTransition, http.StatusBadRequest},
		{status.ErrPaymentNotFound, http.StatusNotFound},
		{status.ErrForbidden, http.StatusForbidden},
		{errors.New("redis exploded"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, apiStatus(t, mapServiceError(c.err)), c.err.Error())
	}
}

// Wrapped sentinels must still map: handlers see errors after several layers
// of fmt.Errorf %w wrapping.
func TestMapServiceError_Wrapped(t *testing.T) {
	err := fmt.Errorf("ProcessPayment: %w: phone_number is required", status.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, mapServiceError(err)))

	err = fmt.Errorf("Settle: get payment x: %w", status.ErrPaymentNotFound)
	assert.Equal(t, http.StatusNotFound, apiStatus(t, mapServiceError(err)))
}
