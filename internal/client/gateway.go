package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"storefront-payments/internal/config"
)

type GatewayClient interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}

// GatewayOrder is the descriptor the gateway returns at order creation.
// Amount is minor units.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

type GatewayPayment struct {
	ID             string `json:"id"`
	GatewayOrderID string `json:"order_id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Email          string `json:"email"`
	Contact        string `json:"contact"`
}

// tokenCache holds the gateway access token and its expiry. now is injected
// so tests can control expiry.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func (c *tokenCache) get(fetch func() (string, time.Duration, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	token, ttl, err := fetch()
	if err != nil {
		return "", err
	}

	c.token = token
	// renew a minute early so an in-flight request never carries a stale token
	c.expiresAt = c.now().Add(ttl - time.Minute)

	return token, nil
}

type gatewayClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	keyID      string
	keySecret  string
	cache      *tokenCache
}

func NewGatewayClient(gatewayCfg *config.Gateway) GatewayClient {
	return &gatewayClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: gatewayCfg.BaseAPIURL,
		keyID:      gatewayCfg.KeyID,
		keySecret:  gatewayCfg.KeySecret,
		cache:      &tokenCache{now: time.Now},
	}
}

func (c *gatewayClientImpl) getAccessToken(ctx context.Context) (string, error) {
	return c.cache.get(func() (string, time.Duration, error) {
		auth := base64.StdEncoding.EncodeToString(
			[]byte(c.keyID + ":" + c.keySecret),
		)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseApiURL+"/v1/oauth2/token",
			bytes.NewBufferString("grant_type=client_credentials"))
		if err != nil {
			return "", 0, fmt.Errorf("http new request: %w", err)
		}
		req.Header.Set("Authorization", "Basic "+auth)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", 0, fmt.Errorf("http client do: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			return "", 0, fmt.Errorf("gateway token error %d: %s", resp.StatusCode, string(b))
		}

		var res struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int64  `json:"expires_in"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return "", 0, fmt.Errorf("decode token response: %w", err)
		}

		return res.AccessToken, time.Duration(res.ExpiresIn) * time.Second, nil
	})
}

func (c *gatewayClientImpl) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gateway access token: %w", err)
	}

	payload := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/orders",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway create order request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(b))
	}

	var result GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	return &result, nil
}

func (c *gatewayClientImpl) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gateway access token: %w", err)
	}

	url := fmt.Sprintf("%s/v1/payments/%s", c.baseApiURL, paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway fetch payment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(b))
	}

	var result GatewayPayment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	return &result, nil
}
