package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/storefront-api/internal/gateway"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrUnknownAttempt    = errors.New("no checkout attempt for this ID")
	ErrLedgerUnavailable = errors.New("order ledger unavailable")
)

// CartClearer empties a user's cart after their order is placed. Clearing is
// best effort; a leftover cart never blocks finalization.
type CartClearer interface {
	Clear(userID string) error
}

// Service reconciles payment completion signals into orders. Two independent
// callers invoke it for the same attempt with no shared memory: the
// user-facing redirect handler and the provider's webhook dispatcher. All
// coordination happens through the ledger's conditional insert.
type Service struct {
	db    *Database
	carts CartClearer
}

// NewService creates a new order service with the given database connection.
// carts may be nil when cart cleanup is not wanted (tests, tooling).
func NewService(gormDB *gorm.DB, carts CartClearer) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		carts: carts,
	}
}

// GetDB exposes the database wrapper for the retention sweeper
func (s *Service) GetDB() *Database {
	return s.db
}

// RecordAttempt persists a new checkout attempt in PENDING state
func (s *Service) RecordAttempt(attempt *CheckoutAttempt) error {
	if err := s.db.CreateAttempt(attempt); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// GetAttempt retrieves a checkout attempt by its ID, nil if unknown
func (s *Service) GetAttempt(attemptID string) (*CheckoutAttempt, error) {
	return s.db.GetAttempt(attemptID)
}

// FinalizeFromRedirect handles the browser's return from the payment page.
// The redirect carries no cryptographic proof, so it is advisory: it may
// create the order early for good latency, but every value on the order comes
// from the stored attempt, never from anything the browser supplied.
// Returns the order and whether this call created it.
func (s *Service) FinalizeFromRedirect(userID, attemptID string) (*Order, bool, error) {
	attempt, err := s.db.GetAttempt(attemptID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if attempt == nil || attempt.UserID != userID {
		return nil, false, ErrUnknownAttempt
	}

	return s.finalize(attempt)
}

// FinalizeFromEvent handles a signature-verified provider event. The caller
// has already authenticated the raw payload; an event for an attempt this
// system has no record of is reported as ErrUnknownAttempt so the transport
// can acknowledge it without creating anything.
func (s *Service) FinalizeFromEvent(ev *gateway.Event) (*Order, bool, error) {
	logger := log.With().
		Str("component", "reconciler").
		Str("event_id", ev.EventID).
		Str("attempt_id", ev.Data.AttemptID).
		Logger()

	// Audit trail per delivery attempt, redeliveries included
	audit := &WebhookEvent{
		EventID:        ev.EventID,
		EventType:      ev.Type,
		AttemptID:      ev.Data.AttemptID,
		SignatureValid: true,
		ReceivedAt:     time.Now(),
	}
	if err := s.db.RecordWebhookEvent(audit); err != nil {
		logger.Warn().Err(err).Msg("failed to record webhook audit row")
	}

	attempt, err := s.db.GetAttempt(ev.Data.AttemptID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if attempt == nil {
		logger.Info().Msg("event references unknown attempt, acknowledging without order")
		return nil, false, ErrUnknownAttempt
	}

	order, created, err := s.finalize(attempt)
	if err != nil {
		return nil, false, err
	}
	if !created {
		logger.Debug().Str("order_id", order.OrderID).Msg("duplicate delivery, order already finalized")
	}
	return order, created, nil
}

// finalize attempts the PENDING -> FINALIZED transition. The order draft is
// built solely from the stored attempt and committed with an atomic
// insert-if-absent keyed on attempt_id; the loser of a race gets the winner's
// row back as a success.
func (s *Service) finalize(attempt *CheckoutAttempt) (*Order, bool, error) {
	draft := &Order{
		OrderID:         "ORD_" + uuid.New().String(),
		AttemptID:       attempt.AttemptID,
		UserID:          attempt.UserID,
		Lines:           attempt.Lines,
		TotalMinorUnits: attempt.TotalMinorUnits,
		PlacedAt:        time.Now(),
	}

	order, created, err := s.db.InsertOrderIfAbsent(draft)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if created {
		logger := log.With().
			Str("component", "reconciler").
			Str("attempt_id", attempt.AttemptID).
			Str("order_id", order.OrderID).
			Logger()
		logger.Info().Int64("total_minor_units", order.TotalMinorUnits).Msg("order finalized")

		if err := s.db.MarkAttemptFinalized(attempt.AttemptID); err != nil {
			logger.Warn().Err(err).Msg("failed to flip attempt status")
		}
		if s.carts != nil {
			if err := s.carts.Clear(attempt.UserID); err != nil {
				logger.Warn().Err(err).Msg("failed to clear cart after order placement")
			}
		}
	}

	return order, created, nil
}

// ListOrders returns the user's order history, newest first
func (s *Service) ListOrders(userID string) ([]Order, error) {
	orders, err := s.db.ListOrdersByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return orders, nil
}
