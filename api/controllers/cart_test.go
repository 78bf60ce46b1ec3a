package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/api/middleware"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

type stubCartService struct {
	cart      *models.Cart
	err       error
	addedID   uuid.UUID
	addedQty  int
	cleared   bool
	updated   int
	removedID uuid.UUID
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error) {
	s.addedID = productID
	s.addedQty = qty
	return s.cart, s.err
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error) {
	s.updated = qty
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	s.removedID = productID
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	s.cleared = true
	return s.err
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.cart, s.err
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	return req.WithContext(ctx)
}

func testCart() *models.Cart {
	return &models.Cart{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
		Items: []models.CartItem{
			{ProductID: uuid.New(), Quantity: 2},
		},
	}
}

func TestCartAddItem(t *testing.T) {
	svc := &stubCartService{cart: testCart()}
	handler := CartAddItem(svc, nil)

	productID := uuid.New()
	body, _ := json.Marshal(map[string]any{"product_id": productID, "quantity": 3})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.addedID != productID || svc.addedQty != 3 {
		t.Fatalf("service not called with payload: %s qty %d", svc.addedID, svc.addedQty)
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected one cart line, got %d", len(envelope.Data.Items))
	}
}

func TestCartAddItemRejectsMissingQuantity(t *testing.T) {
	svc := &stubCartService{cart: testCart()}
	handler := CartAddItem(svc, nil)

	body, _ := json.Marshal(map[string]any{"product_id": uuid.New()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.addedQty != 0 {
		t.Fatal("service must not be called on invalid payload")
	}
}

func TestCartFetchRequiresUser(t *testing.T) {
	handler := CartFetch(&stubCartService{cart: testCart()}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestCartFetchExpiredCartIs404(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")}
	handler := CartFetch(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/cart", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	handler := CartClear(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/cart", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !svc.cleared {
		t.Fatal("expected clear to reach the service")
	}
}
