package mtn

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:           baseURL,
		SubscriptionKey:   "sub-key",
		APIUser:           "api-user",
		APIKey:            "api-key",
		TargetEnvironment: "sandbox",
	}
}

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("api-user:api-key"))
		assert.Equal(t, expected, r.Header.Get("Authorization"))
		assert.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc123","token_type":"Bearer","expires_in":3600}`))
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), &Config{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestNew_Connects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collection/token/", r.URL.Path)
		tokenHandler(t)(w, r)
	}))
	defer srv.Close()

	c, err := New(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", c.client.getAccessToken())
}

func TestRequestToPay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collection/token/":
			tokenHandler(t)(w, r)
		case "/collection/v1_0/requesttopay":
			assert.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
			assert.Equal(t, "ref-001", r.Header.Get("X-Reference-Id"))
			assert.Equal(t, "sandbox", r.Header.Get("X-Target-Environment"))
			w.WriteHeader(http.StatusAccepted)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, err := New(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	err = c.RequestToPay(context.Background(), "ref-001", &PayForm{
		Phone:    "237670000001",
		Amount:   decimal.NewFromInt(5000),
		Currency: "XAF",
		Message:  "EventEz: Jazz Night",
	})
	assert.NoError(t, err)
}

func TestRequestToPay_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collection/token/" {
			tokenHandler(t)(w, r)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"PAYER_NOT_FOUND","message":"Payer not found"}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	err = c.RequestToPay(context.Background(), "ref-002", &PayForm{
		Phone:    "237670000002",
		Amount:   decimal.NewFromInt(1000),
		Currency: "XAF",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Payer not found")
}

func TestCheckTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collection/token/":
			tokenHandler(t)(w, r)
		case "/collection/v1_0/requesttopay/ref-003":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"SUCCESSFUL","financialTransactionId":"ft-99"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, err := New(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	tx, err := c.CheckTransaction(context.Background(), "ref-003")
	require.NoError(t, err)
	assert.Equal(t, "ref-003", tx.ReferenceID)
	assert.Equal(t, "SUCCESSFUL", tx.Status)
	assert.Equal(t, "ft-99", tx.FinancialTxID)
	assert.Empty(t, tx.Reason)
}

func TestCheckTransaction_FailedWithReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collection/token/" {
			tokenHandler(t)(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"FAILED","reason":{"code":"APPROVAL_REJECTED","message":"Payer rejected the payment"}}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	tx, err := c.CheckTransaction(context.Background(), "ref-004")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", tx.Status)
	assert.Equal(t, "Payer rejected the payment", tx.Reason)
}

func TestCheckTransaction_BareStringReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collection/token/" {
			tokenHandler(t)(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"FAILED","reason":"INTERNAL_PROCESSING_ERROR"}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	tx, err := c.CheckTransaction(context.Background(), "ref-005")
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL_PROCESSING_ERROR", tx.Reason)
}
