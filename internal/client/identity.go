package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-payments/internal/config"
)

// IdentityClient talks to the identity provider's server-side admin API.
type IdentityClient interface {
	// VerifyToken validates an end-user access token with the provider and
	// returns the user it belongs to.
	VerifyToken(ctx context.Context, accessToken string) (*AuthUser, error)
	// GetUserByID looks a user up with the service key.
	GetUserByID(ctx context.Context, userID string) (*AuthUser, error)
}

type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type identityClientImpl struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
}

func NewIdentityClient(identityCfg *config.Identity) IdentityClient {
	return &identityClientImpl{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:    identityCfg.BaseURL,
		serviceKey: identityCfg.ServiceKey,
	}
}

func (c *identityClientImpl) VerifyToken(ctx context.Context, accessToken string) (*AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.serviceKey)

	return c.doUserRequest(req)
}

func (c *identityClientImpl) GetUserByID(ctx context.Context, userID string) (*AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/auth/v1/admin/users/%s", c.baseURL, userID), nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	return c.doUserRequest(req)
}

func (c *identityClientImpl) doUserRequest(req *http.Request) (*AuthUser, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity provider error %d: %s", resp.StatusCode, string(b))
	}

	var user AuthUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity provider response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("identity provider returned no user id")
	}

	return &user, nil
}
