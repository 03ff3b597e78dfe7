package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ksred/storefront-api/internal/types"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Client talks to the hosted payment provider's session API. The provider
// hosts the payment page itself; this client only creates sessions and hands
// the redirect URL back to the storefront.
type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewClient creates a gateway client with a bounded request timeout
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionRequest is the outbound session creation payload. Metadata is opaque
// to the provider and echoed back unchanged on every signal about the session.
type SessionRequest struct {
	LineItems  []types.CartLine  `json:"line_items"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

// SessionResponse carries the hosted payment page location
type SessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSession requests a hosted payment session from the provider.
// Any transport or non-2xx failure surfaces as ErrGatewayUnavailable; the
// caller must not persist anything for the attempt in that case.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Str("component", "gateway").Msg("session creation request failed")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().
			Str("component", "gateway").
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("session creation rejected")
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var session SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrGatewayUnavailable, err)
	}
	if session.SessionID == "" || session.RedirectURL == "" {
		return nil, fmt.Errorf("%w: incomplete session response", ErrGatewayUnavailable)
	}

	return &session, nil
}
