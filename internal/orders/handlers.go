package orders

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/storefront-api/internal/gateway"
	"github.com/ksred/storefront-api/pkg/response"
	"github.com/rs/zerolog/log"
)

// GinHandlers contains HTTP handlers for order finalization and history
type GinHandlers struct {
	service       *Service
	webhookSecret string
	tolerance     time.Duration
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints.
// webhookSecret is the shared secret the provider signs deliveries with.
func NewGinHandlers(service *Service, webhookSecret string) *GinHandlers {
	return &GinHandlers{
		service:       service,
		webhookSecret: webhookSecret,
		tolerance:     gateway.DefaultTolerance,
	}
}

// SuccessHandler handles the browser redirect back from the payment page.
// Requires a valid JWT; query parameter: attempt_id.
// This path is advisory. A transient failure here is not fatal: the provider
// event finalizes the attempt eventually, so the user still sees their order
// in history once it arrives.
func (h *GinHandlers) SuccessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		attemptID := c.Query("attempt_id")
		if attemptID == "" {
			response.BadRequest(c, "attempt_id query parameter is required")
			return
		}

		order, created, err := h.service.FinalizeFromRedirect(userID, attemptID)
		switch {
		case errors.Is(err, ErrUnknownAttempt):
			response.NotFound(c, "Checkout attempt not found")
		case errors.Is(err, ErrLedgerUnavailable):
			response.ServiceUnavailable(c, "Order confirmation is delayed, check your order history shortly")
		case err != nil:
			response.InternalError(c, err.Error())
		default:
			response.Success(c, gin.H{
				"order":   order,
				"created": created,
			})
		}
	}
}

// WebhookHandler handles signed event deliveries from the payment provider.
// No JWT: the delivery authenticates itself through the signature over the
// raw body, which must be read before any parsing. Responses drive the
// provider's retry loop: 2xx acknowledges, anything else is redelivered.
func (h *GinHandlers) WebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := log.With().Str("component", "webhook").Logger()

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "Unreadable request body")
			return
		}

		sigHeader := c.GetHeader(gateway.SignatureHeader)
		if err := gateway.VerifySignature(payload, sigHeader, h.webhookSecret, h.tolerance); err != nil {
			logger.Warn().Err(err).Msg("rejected webhook delivery")
			response.SignatureInvalid(c, "Signature verification failed")
			return
		}

		ev, err := gateway.ParseEvent(payload)
		if err != nil {
			logger.Warn().Err(err).Msg("rejected malformed webhook payload")
			response.BadRequest(c, "Malformed event payload")
			return
		}

		switch ev.Type {
		case gateway.EventCheckoutCompleted:
			order, _, err := h.service.FinalizeFromEvent(ev)
			switch {
			case errors.Is(err, ErrUnknownAttempt):
				// Not ours or past retention; acknowledge so the provider
				// stops redelivering.
				c.JSON(http.StatusOK, gin.H{"received": true})
			case errors.Is(err, ErrLedgerUnavailable):
				response.ServiceUnavailable(c, "Ledger unavailable, retry delivery")
			case err != nil:
				response.InternalError(c, err.Error())
			default:
				c.JSON(http.StatusOK, gin.H{"received": true, "order_id": order.OrderID})
			}

		case gateway.EventPaymentSucceeded:
			// Redundant with checkout.session.completed; logged for audit only
			logger.Info().Str("event_id", ev.EventID).Msg("payment succeeded event acknowledged")
			c.JSON(http.StatusOK, gin.H{"received": true})

		default:
			logger.Info().Str("event_type", ev.Type).Msg("unhandled event type acknowledged")
			c.JSON(http.StatusOK, gin.H{"received": true})
		}
	}
}

// ListOrdersHandler handles GET requests for the user's order history
// Requires a valid JWT
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		orders, err := h.service.ListOrders(userID)
		response.Handle(c, orders, err)
	}
}
