// Package payment integrates payment processors. Checkout sessions are
// created against the processor API; inbound webhooks are verified, guarded
// against replay, and handed to the order finalizer.
package payment

import (
	"context"
	"net/http"
)

// Event types the finalizer acts on.
const (
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventCheckoutCompleted = "checkout.session.completed"
)

// Event is a normalized payment webhook event. Provider is filled by the
// webhook handler from the route, not by the integration.
type Event struct {
	Provider   string
	Type       string
	ProviderID string
	SessionID  string
	CartID     string
	SID        string
	// AmountCents is the processor-reported charged amount; nil when the
	// event did not carry one.
	AmountCents      *int64
	TaxCalculationID string
	Raw              []byte
}

// SessionRequest describes the checkout session to create.
type SessionRequest struct {
	CartID      string
	SID         string
	Currency    string
	AmountCents int64
	SuccessURL  string
	CancelURL   string
}

// Session is a created checkout session.
type Session struct {
	ID  string
	URL string
}

// Provider is a payment processor integration.
type Provider interface {
	// VerifyWebhook authenticates the request signature and parses the
	// event. body is the already-read request body.
	VerifyWebhook(r *http.Request, body []byte) (Event, error)
	// CreateCheckoutSession starts a hosted checkout for the given cart.
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
}
