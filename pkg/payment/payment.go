// Package payment abstracts the payment processor behind a capability set so
// the checkout orchestration runs unchanged against the real provider or a
// deterministic in-memory double. Implementations are selected by dependency
// injection at startup, never by runtime branching at call sites.
package payment

import (
	"context"
	"errors"
)

// Intent statuses normalized across backends.
const (
	IntentStatusRequiresPayment = "requires_payment_method"
	IntentStatusSucceeded       = "succeeded"
	IntentStatusFailed          = "failed"
)

// ErrDeclined is returned by confirmation when the payment was declined.
var ErrDeclined = errors.New("payment declined")

// Customer identifies a payer on the provider side.
type Customer struct {
	ID    string
	Email string
}

// Intent is a provider-agnostic payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

// Subscription is a provider-agnostic recurring billing agreement.
type Subscription struct {
	ID           string
	CustomerID   string
	Status       string
	ClientSecret string
}

// IntentRequest carries everything needed to create a payment intent. The
// metadata must round-trip enough information to reconstruct the order when
// the asynchronous confirmation arrives.
type IntentRequest struct {
	AmountCents int64
	Currency    string
	CustomerID  string
	Metadata    map[string]string
}

// SubscriptionRequest starts a recurring access pass.
type SubscriptionRequest struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

// Backend is the capability set every payment processor must provide.
type Backend interface {
	GetOrCreateCustomer(ctx context.Context, userID, email string) (*Customer, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error)
	ConfirmPaymentIntent(ctx context.Context, intentID string) (*Intent, error)
}
