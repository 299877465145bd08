package orange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const grantTypeDefaultStr = "client_credentials"

type Config struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	MerchantKey    string `json:"merchant_key" mapstructure:"merchant_key"`
	ConsumerKey    string `json:"consumer_key" mapstructure:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret" mapstructure:"consumer_secret"`

	// ReturnURL, CancelURL and NotifURL are where the Orange payment page
	// sends the customer (and the server notification) after payment.
	ReturnURL string `json:"return_url" mapstructure:"return_url"`
	CancelURL string `json:"cancel_url" mapstructure:"cancel_url"`
	NotifURL  string `json:"notif_url" mapstructure:"notif_url"`
}

type client struct {
	// baseURL is the base url of the Orange API.
	baseURL string

	// merchantKey identifies the merchant on web payment calls.
	merchantKey string

	// consumerKey and consumerSecret are the oauth client-credentials pair.
	consumerKey    string
	consumerSecret string

	returnURL string
	cancelURL string
	notifURL  string

	// accessToken is used to authenticate with the Orange API.
	accessToken string

	// mu is used to lock access token.
	mu sync.Mutex

	// toggleTokenRefresher is used to notify token refresher to refresh token.
	toggleTokenRefresher chan struct{}

	// hc is the http client.
	hc *http.Client
}

// notifyAccessTokenExpired do infinite loop with period of time
// to perform auto renew token from the Orange API with
// exponential backOff strategy.
func (c *client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Minute)
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

// connect makes http call to perform oauth authentication with the Orange API.
func (c *client) connect(ctx context.Context) (string, error) {
	query := url.Values{"grant_type": []string{grantTypeDefaultStr}}
	body := strings.NewReader(query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.baseURL, "/oauth/v3/token"), body)
	if err != nil {
		return "", fmt.Errorf("connectOrange: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("connectOrange: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", errors.New("connectOrange: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("connectOrange: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("connectOrange: json.Decode: %w", err)
	}

	return fmt.Sprintf("%s %s", reply.TokenType, reply.AccessToken), nil
}

// initWebPayment opens a web payment session and returns the pay token used
// for status polling plus the page the customer pays on.
func (c *client) initWebPayment(ctx context.Context, f *PayForm) (*Session, error) {
	body := fmt.Sprintf(`{"merchant_key":%q,"currency":%q,"order_id":%q,"amount":%s,"return_url":%q,"cancel_url":%q,"notif_url":%q,"lang":"fr","reference":%q}`,
		c.merchantKey, f.Currency, f.OrderID, f.Amount.String(), c.returnURL, c.cancelURL, c.notifURL, f.Reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.baseURL, "/v1/webpayment"), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("initWebPaymentOrange: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("initWebPaymentOrange: http.Do: %w", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("initWebPaymentOrange: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("initWebPaymentOrange: %s", decodeErrorMessage(rbody))
	}

	var reply struct {
		Message    string `json:"message"`
		PayToken   string `json:"pay_token"`
		PaymentURL string `json:"payment_url"`
		NotifToken string `json:"notif_token"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("initWebPaymentOrange: json.Decode: %w", err)
	}
	if reply.PayToken == "" {
		return nil, fmt.Errorf("initWebPaymentOrange: reply.Message: %v", reply.Message)
	}

	return &Session{
		PayToken:   reply.PayToken,
		PaymentURL: reply.PaymentURL,
		NotifToken: reply.NotifToken,
	}, nil
}

// checkTransaction queries the web payment session status by pay token.
func (c *client) checkTransaction(ctx context.Context, payToken string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/webpayment/%s", c.baseURL, payToken), nil)
	if err != nil {
		return nil, fmt.Errorf("checkTransactionOrange: http.NewReq: %w", err)
	}
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkTransactionOrange: http.Do: %w", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("checkTransactionOrange: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("checkTransactionOrange: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply struct {
		Status  string `json:"status"`
		TxnID   string `json:"txnid"`
		Message string `json:"message"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("checkTransactionOrange: json.Decode: %w", err)
	}

	return &Transaction{
		PayToken: payToken,
		Status:   reply.Status,
		TxnID:    reply.TxnID,
		Reason:   reply.Message,
	}, nil
}

// decodeErrorMessage pulls a human-readable message out of an Orange error
// payload, falling back to the raw body.
func decodeErrorMessage(body []byte) string {
	var reply struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &reply); err == nil {
		if reply.Description != "" {
			return reply.Description
		}
		if reply.Message != "" {
			return reply.Message
		}
	}
	return strings.TrimSpace(string(body))
}
