package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/subscription"
)

// StripeBackend implements Backend against the Stripe API.
type StripeBackend struct{}

// NewStripeBackend configures the global Stripe key and returns the backend.
func NewStripeBackend(apiKey string) (*StripeBackend, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	stripe.Key = key
	return &StripeBackend{}, nil
}

// GetOrCreateCustomer finds the customer by email or creates one tagged with
// the user id.
func (b *StripeBackend) GetOrCreateCustomer(ctx context.Context, userID, email string) (*Customer, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := customer.List(listParams)
	for iter.Next() {
		existing := iter.Customer()
		return &Customer{ID: existing.ID, Email: email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing stripe customers: %w", err)
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	created, err := customer.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe customer: %w", err)
	}
	return &Customer{ID: created.ID, Email: email}, nil
}

// CreatePaymentIntent opens a payment intent with the round-trip metadata
// attached.
func (b *StripeBackend) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// CreateSubscription starts a recurring subscription on the configured price.
func (b *StripeBackend) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(req.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe subscription: %w", err)
	}

	result := &Subscription{
		ID:         sub.ID,
		CustomerID: req.CustomerID,
		Status:     string(sub.Status),
	}
	if sub.PendingSetupIntent != nil {
		result.ClientSecret = sub.PendingSetupIntent.ClientSecret
	}
	return result, nil
}

// ConfirmPaymentIntent fetches the current intent state. Stripe confirms
// intents client-side; this is used to reconcile state server-side.
func (b *StripeBackend) ConfirmPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("fetching stripe payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
}
