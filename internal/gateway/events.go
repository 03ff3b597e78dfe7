package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Known event types. Deliveries of any other type are acknowledged and
// ignored by consumers, never treated as an error.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
)

// Event is the provider's webhook envelope. EventID identifies a delivery
// attempt; the same logical event can be redelivered with the same ID, so it
// must not be used as a uniqueness key for order creation.
type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

// EventData carries the session the event refers to plus the attempt ID the
// storefront supplied as metadata at session creation.
type EventData struct {
	SessionID string `json:"session_id"`
	AttemptID string `json:"attempt_id"`
}

// Known reports whether the event type is one this system understands.
func (e *Event) Known() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventPaymentSucceeded
}

// ParseEvent decodes a raw webhook body into the envelope. Callers must have
// verified the signature over the same raw bytes first.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.EventID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing event_id or type", ErrMalformedEvent)
	}
	return &ev, nil
}
