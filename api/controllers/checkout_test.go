package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	checkoutsvc "github.com/assetdeck/assetdeck-backend/internal/checkout"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

type stubCheckout struct {
	intent   *checkoutsvc.IntentResult
	pass     *checkoutsvc.AccessPassResult
	err      error
	lastTier enums.AccessPassTier
	items    []checkoutsvc.Item
}

func (s *stubCheckout) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, email string, items []checkoutsvc.Item, licenseType enums.LicenseType) (*checkoutsvc.IntentResult, error) {
	s.items = items
	return s.intent, s.err
}

func (s *stubCheckout) CreateAccessPass(ctx context.Context, userID uuid.UUID, email string, tier enums.AccessPassTier) (*checkoutsvc.AccessPassResult, error) {
	s.lastTier = tier
	return s.pass, s.err
}

func (s *stubCheckout) ActivateAccessPass(ctx context.Context, providerRef string) error {
	return nil
}

func (s *stubCheckout) DeactivateAccessPass(ctx context.Context, providerRef string, status enums.SubscriptionStatus) error {
	return nil
}

func TestCheckoutIntentFreeBasket(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckout{intent: &checkoutsvc.IntentResult{
		IsFree:   true,
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
	}}
	handler := CheckoutIntent(svc, nil)

	body, _ := json.Marshal(map[string]any{
		"items":        []map[string]any{{"product_id": uuid.New(), "quantity": 1}},
		"license_type": "basic",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout/intent", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data checkoutIntentResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.IsFree {
		t.Fatal("expected is_free")
	}
	if envelope.Data.ClientSecret != "" {
		t.Fatal("free checkout must not return a client secret")
	}
	if envelope.Data.OrderID == nil || *envelope.Data.OrderID != orderID {
		t.Fatal("free checkout must return the settled order id")
	}
}

func TestCheckoutIntentRejectsUnknownLicenseType(t *testing.T) {
	svc := &stubCheckout{}
	handler := CheckoutIntent(svc, nil)

	body, _ := json.Marshal(map[string]any{
		"items":        []map[string]any{{"product_id": uuid.New(), "quantity": 1}},
		"license_type": "platinum",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout/intent", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.items != nil {
		t.Fatal("service must not be called on invalid payload")
	}
}

func TestAccessPassDuplicateIs409(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeConflict, "an active access pass already exists")}
	handler := AccessPassCreate(svc, nil)

	body, _ := json.Marshal(map[string]any{"tier": "monthly"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout/access-pass", body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if svc.lastTier != enums.AccessPassTierMonthly {
		t.Fatalf("expected parsed tier, got %s", svc.lastTier)
	}
}
