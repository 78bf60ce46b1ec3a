package payment

import (
	"context"
	"fmt"
	"sync"
)

// MockBackend is a deterministic in-memory payment processor used in tests
// and local development. IDs are sequential, confirmation is explicit, and
// every call is counted so tests can assert the backend was (not) touched.
type MockBackend struct {
	mu sync.Mutex

	customers     map[string]*Customer
	intents       map[string]*Intent
	subscriptions map[string]*Subscription

	nextCustomer int
	nextIntent   int
	nextSub      int

	failNextReason string

	IntentCalls       int
	SubscriptionCalls int
}

// NewMockBackend builds an empty mock processor.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		customers:     map[string]*Customer{},
		intents:       map[string]*Intent{},
		subscriptions: map[string]*Subscription{},
	}
}

// FailNext makes the next mutating call fail with the given decline reason.
func (m *MockBackend) FailNext(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextReason = reason
}

func (m *MockBackend) takeFailure() string {
	reason := m.failNextReason
	m.failNextReason = ""
	return reason
}

// GetOrCreateCustomer reuses the customer keyed by email.
func (m *MockBackend) GetOrCreateCustomer(ctx context.Context, userID, email string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.customers[email]; ok {
		return existing, nil
	}
	m.nextCustomer++
	cust := &Customer{
		ID:    fmt.Sprintf("cus_mock_%04d", m.nextCustomer),
		Email: email,
	}
	m.customers[email] = cust
	return cust, nil
}

// CreatePaymentIntent records an intent in requires_payment_method state.
func (m *MockBackend) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IntentCalls++
	if reason := m.takeFailure(); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrDeclined, reason)
	}

	m.nextIntent++
	id := fmt.Sprintf("pi_mock_%04d", m.nextIntent)
	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Status:       IntentStatusRequiresPayment,
		Metadata:     metadata,
	}
	m.intents[id] = intent
	return intent, nil
}

// CreateSubscription records an active subscription.
func (m *MockBackend) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SubscriptionCalls++
	if reason := m.takeFailure(); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrDeclined, reason)
	}

	m.nextSub++
	id := fmt.Sprintf("sub_mock_%04d", m.nextSub)
	sub := &Subscription{
		ID:           id,
		CustomerID:   req.CustomerID,
		Status:       "active",
		ClientSecret: id + "_secret",
	}
	m.subscriptions[id] = sub
	return sub, nil
}

// ConfirmPaymentIntent transitions a known intent to succeeded.
func (m *MockBackend) ConfirmPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("unknown payment intent %q", intentID)
	}
	if reason := m.takeFailure(); reason != "" {
		intent.Status = IntentStatusFailed
		return nil, fmt.Errorf("%w: %s", ErrDeclined, reason)
	}
	intent.Status = IntentStatusSucceeded
	return intent, nil
}
