package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCustomerIsReusedByEmail(t *testing.T) {
	backend := NewMockBackend()

	first, err := backend.GetOrCreateCustomer(context.Background(), "user-1", "dev@example.com")
	require.NoError(t, err)
	second, err := backend.GetOrCreateCustomer(context.Background(), "user-1", "dev@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestMockIntentLifecycle(t *testing.T) {
	backend := NewMockBackend()

	intent, err := backend.CreatePaymentIntent(context.Background(), IntentRequest{
		AmountCents: 30000,
		Currency:    "USD",
		Metadata:    map[string]string{"user_id": "u-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, IntentStatusRequiresPayment, intent.Status)
	assert.NotEmpty(t, intent.ClientSecret)
	assert.Equal(t, "u-1", intent.Metadata["user_id"])

	confirmed, err := backend.ConfirmPaymentIntent(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, IntentStatusSucceeded, confirmed.Status)
	assert.Equal(t, 1, backend.IntentCalls)
}

func TestMockDecline(t *testing.T) {
	backend := NewMockBackend()
	backend.FailNext("card_declined")

	_, err := backend.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 100, Currency: "USD"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeclined))

	// failure flag is consumed, the next call goes through
	_, err = backend.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 100, Currency: "USD"})
	require.NoError(t, err)
}

func TestMockConfirmUnknownIntent(t *testing.T) {
	backend := NewMockBackend()
	_, err := backend.ConfirmPaymentIntent(context.Background(), "pi_missing")
	require.Error(t, err)
}
