package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/storefront-api/internal/catalog"
	"github.com/ksred/storefront-api/internal/gateway"
	"github.com/ksred/storefront-api/internal/orders"
	"github.com/ksred/storefront-api/internal/types"
	"github.com/ksred/storefront-api/pkg/response"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCart = errors.New("cart is empty or contains an invalid line")
)

// CartSource supplies the user's stored cart when a checkout request does not
// carry explicit items.
type CartSource interface {
	Get(userID string) (types.LineItems, error)
}

// Service initiates checkouts: it validates the submitted lines, computes the
// authoritative total in integer minor units, requests a hosted payment
// session and records the attempt. The attempt ID it generates is the
// idempotency key for everything downstream.
type Service struct {
	ledger     *orders.Service
	catalog    *catalog.Service
	carts      CartSource
	gateway    *gateway.Client
	successURL string
	cancelURL  string
}

// NewService creates a new checkout service. successURL and cancelURL are the
// storefront pages the provider redirects the browser back to.
func NewService(ledger *orders.Service, cat *catalog.Service, carts CartSource, gw *gateway.Client, successURL, cancelURL string) *Service {
	return &Service{
		ledger:     ledger,
		catalog:    cat,
		carts:      carts,
		gateway:    gw,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// InitiationResult is returned to the browser so it can follow the redirect
type InitiationResult struct {
	AttemptID       string `json:"attempt_id"`
	RedirectURL     string `json:"redirect_url"`
	TotalMinorUnits int64  `json:"total_minor_units"`
}

// Initiate validates the lines, prices them from the catalog, creates a
// hosted payment session and persists the checkout attempt. Nothing is
// persisted when the gateway call fails, so a failed initiation leaves no
// partial state behind.
func (s *Service) Initiate(ctx context.Context, userID string, lines []types.CartLine) (*InitiationResult, error) {
	if len(lines) == 0 && s.carts != nil {
		stored, err := s.carts.Get(userID)
		if err != nil {
			return nil, err
		}
		lines = stored
	}

	if err := validateLines(lines); err != nil {
		return nil, err
	}

	priced, err := s.catalog.PriceLines(lines)
	if err != nil {
		return nil, err
	}

	total := types.LineItems(priced).Total()
	attemptID := "ATT_" + uuid.New().String()

	logger := log.With().
		Str("component", "checkout").
		Str("attempt_id", attemptID).
		Str("user_id", userID).
		Logger()

	session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		LineItems:  priced,
		SuccessURL: s.successURL + "?attempt_id=" + attemptID,
		CancelURL:  s.cancelURL,
		Metadata:   map[string]string{"attempt_id": attemptID},
	})
	if err != nil {
		logger.Error().Err(err).Msg("payment session creation failed, attempt not persisted")
		return nil, err
	}

	attempt := &orders.CheckoutAttempt{
		AttemptID:        attemptID,
		UserID:           userID,
		GatewaySessionID: session.SessionID,
		Lines:            priced,
		TotalMinorUnits:  total,
		Status:           orders.StatusPending,
		CreatedAt:        time.Now(),
	}
	if err := s.ledger.RecordAttempt(attempt); err != nil {
		logger.Error().Err(err).Msg("failed to persist checkout attempt")
		return nil, err
	}

	logger.Info().
		Str("session_id", session.SessionID).
		Int64("total_minor_units", total).
		Int("line_count", len(priced)).
		Msg("checkout initiated")

	return &InitiationResult{
		AttemptID:       attemptID,
		RedirectURL:     session.RedirectURL,
		TotalMinorUnits: total,
	}, nil
}

// validateLines enforces the input contract: non-empty, every quantity >= 1,
// every price >= 0
func validateLines(lines []types.CartLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidCart)
	}
	for _, line := range lines {
		if line.ProductID == "" {
			return fmt.Errorf("%w: missing product ID", ErrInvalidCart)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: non-positive quantity for %s", ErrInvalidCart, line.ProductID)
		}
		if line.UnitPriceMinorUnits < 0 {
			return fmt.Errorf("%w: negative price for %s", ErrInvalidCart, line.ProductID)
		}
	}
	return nil
}

// GinHandlers contains HTTP handlers for checkout endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for checkout endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CheckoutRequest is the POST body for initiation. Items may be omitted to
// check out the stored cart.
type CheckoutRequest struct {
	Items []types.CartLine `json:"items"`
}

// InitiateHandler handles POST requests to start a checkout
// Requires a valid JWT
func (h *GinHandlers) InitiateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.Initiate(c.Request.Context(), userID, req.Items)
		switch {
		case errors.Is(err, ErrInvalidCart):
			response.BadRequest(c, err.Error())
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			response.BadGateway(c, "Payment provider is unavailable, please retry")
		case errors.Is(err, orders.ErrLedgerUnavailable):
			response.ServiceUnavailable(c, "Could not record checkout attempt, please retry")
		case err != nil:
			response.InternalError(c, err.Error())
		default:
			response.Success(c, result)
		}
	}
}
