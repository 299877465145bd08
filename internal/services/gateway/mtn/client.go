package mtn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL           string `json:"base_url" mapstructure:"base_url"`
	SubscriptionKey   string `json:"subscription_key" mapstructure:"subscription_key"`
	APIUser           string `json:"api_user" mapstructure:"api_user"`
	APIKey            string `json:"api_key" mapstructure:"api_key"`
	TargetEnvironment string `json:"target_environment" mapstructure:"target_environment"`
	CallbackURL       string `json:"callback_url" mapstructure:"callback_url"`
}

type client struct {
	// baseURL is the base url of the MTN collections API.
	baseURL string

	// subscriptionKey is the Ocp-Apim-Subscription-Key of the collections product.
	subscriptionKey string

	// apiUser and apiKey are the basic-auth pair for the token endpoint.
	apiUser string
	apiKey  string

	// targetEnvironment selects sandbox or a production market.
	targetEnvironment string

	callbackURL string

	// accessToken is used to authenticate with the collections API.
	accessToken string

	// mu is used to lock access token.
	mu sync.Mutex

	// toggleTokenRefresher is used to notify token refresher to refresh token.
	toggleTokenRefresher chan struct{}

	// hc is the http client.
	hc *http.Client
}

func newClient(_ context.Context, cfg *Config) *client {
	return &client{
		baseURL:           cfg.BaseURL,
		subscriptionKey:   cfg.SubscriptionKey,
		apiUser:           cfg.APIUser,
		apiKey:            cfg.APIKey,
		targetEnvironment: cfg.TargetEnvironment,
		callbackURL:       cfg.CallbackURL,

		// make a buffered channel to avoid blocking.
		toggleTokenRefresher: make(chan struct{}, 1),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// notifyAccessTokenExpired do infinite loop with period of time
// to perform auto renew token from the MTN API with
// exponential backOff strategy. Collection tokens live one hour.
func (c *client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(45 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("notifyAccessTokenExpired: toggleTokenRefresher => token refreshed")
		}

		// reconnect with exponential backOff strategy
		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("notifyAccessTokenExpired: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

// setAccessToken set access token to client.
func (c *client) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

// getAccessToken get access token from client.
func (c *client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect makes http call to perform authentication with the MTN API.
func (c *client) connect(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.baseURL, "/collection/token/"), nil)
	if err != nil {
		return "", fmt.Errorf("connectMTN: http.NewReq: %v", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.apiUser + ":" + c.apiKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("connectMTN: http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", errors.New("connectMTN: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("connectMTN: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("connectMTN: json.Decode: %v", err)
	}

	return fmt.Sprintf("%s %s", reply.TokenType, reply.AccessToken), nil
}

// errorReply is the MTN error payload. Some endpoints return the reason as a
// bare string, others as {code, message}.
type errorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeErrorReason(body []byte) string {
	var reply errorReply
	if err := json.Unmarshal(body, &reply); err == nil && reply.Message != "" {
		return reply.Message
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil && s != "" {
		return s
	}

	return strings.TrimSpace(string(body))
}

// requestToPay submits a request-to-pay for the given reference id. A 202 from
// the provider is an asynchronous acknowledgment, not a completed payment.
func (c *client) requestToPay(ctx context.Context, referenceID string, f *PayForm) error {
	body := fmt.Sprintf(`{"amount":%q,"currency":%q,"externalId":%q,"payer":{"partyIdType":"MSISDN","partyId":%q},"payerMessage":%q,"payeeNote":%q}`,
		f.Amount.String(), f.Currency, referenceID, f.Phone, f.Message, f.Message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.baseURL, "/collection/v1_0/requesttopay"), strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("requestToPayMTN: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.getAccessToken())
	req.Header.Set("X-Reference-Id", referenceID)
	req.Header.Set("X-Target-Environment", c.targetEnvironment)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	if c.callbackURL != "" {
		req.Header.Set("X-Callback-Url", c.callbackURL)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("requestToPayMTN: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return errors.New("requestToPayMTN: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusAccepted {
		rbody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("requestToPayMTN: %s", decodeErrorReason(rbody))
	}

	return nil
}

// getTransactionStatus queries the request-to-pay status endpoint.
func (c *client) getTransactionStatus(ctx context.Context, referenceID string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collection/v1_0/requesttopay/%s", c.baseURL, referenceID), nil)
	if err != nil {
		return nil, fmt.Errorf("getTransactionStatusMTN: http.NewReq: %v", err)
	}
	req.Header.Set("Authorization", c.getAccessToken())
	req.Header.Set("X-Target-Environment", c.targetEnvironment)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getTransactionStatusMTN: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("getTransactionStatusMTN: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("getTransactionStatusMTN: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply struct {
		Status                 string          `json:"status"`
		FinancialTransactionID string          `json:"financialTransactionId"`
		Reason                 json.RawMessage `json:"reason"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("getTransactionStatusMTN: json.Decode: %v", err)
	}

	return &Transaction{
		ReferenceID:   referenceID,
		Status:        reply.Status,
		FinancialTxID: reply.FinancialTransactionID,
		Reason:        decodeErrorReason(reply.Reason),
	}, nil
}
