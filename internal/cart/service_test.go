package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCartRepo{}, &stubProductLoader{})

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	t.Parallel()

	loader := &stubProductLoader{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	svc := newTestService(t, &stubCartRepo{}, loader)

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAddItemCreatesCartAndUpserts(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	repo := &stubCartRepo{}
	svc := newTestService(t, repo, &stubProductLoader{product: &models.Product{ID: productID, IsActive: true}})

	cart, err := svc.AddItem(context.Background(), userID, productID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart == nil {
		t.Fatal("expected cart")
	}
	if len(repo.upserted) != 1 || repo.upserted[0].Quantity != 2 {
		t.Fatalf("expected one upserted item with qty 2, got %+v", repo.upserted)
	}
	if repo.created == nil {
		t.Fatal("expected a cart to be created for a new user")
	}
}

func TestAddItemMergesQuantities(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	svc := newTestService(t, repo, &stubProductLoader{product: &models.Product{ID: productID, IsActive: true}})

	if _, err := svc.AddItem(context.Background(), userID, productID, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), userID, productID, 3); err != nil {
		t.Fatalf("second add: %v", err)
	}

	// The repo merges on conflict; both adds hit the same (cart, product) key.
	total := 0
	for _, item := range repo.upserted {
		total += item.Quantity
	}
	if total != 5 {
		t.Fatalf("expected merged quantity 5, got %d", total)
	}
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	repo := &stubCartRepo{
		cart: &models.Cart{
			ID:        uuid.New(),
			UserID:    userID,
			ExpiresAt: time.Now().Add(time.Hour),
			Items:     []models.CartItem{{ProductID: productID, Quantity: 2}},
		},
		deleteAffected: 1,
	}
	svc := newTestService(t, repo, &stubProductLoader{})

	if _, err := svc.UpdateQuantity(context.Background(), userID, productID, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.deletedItems != 1 {
		t.Fatalf("expected item delete, got %d", repo.deletedItems)
	}
}

func TestUpdateQuantityMissingItem(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{ID: uuid.New(), UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}}
	svc := newTestService(t, repo, &stubProductLoader{})

	_, err := svc.UpdateQuantity(context.Background(), userID, uuid.New(), 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetCartExpiredReadsAsMissing(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}}
	svc := newTestService(t, repo, &stubProductLoader{})

	_, err := svc.GetCart(context.Background(), userID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found for expired cart, got %v", err)
	}
}

func TestMutationSlidesExpiry(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	originalExpiry := time.Now().Add(time.Hour)
	repo := &stubCartRepo{
		cart: &models.Cart{
			ID:        uuid.New(),
			UserID:    userID,
			ExpiresAt: originalExpiry,
			Items:     []models.CartItem{{ProductID: productID, Quantity: 1}},
		},
		setAffected: 1,
	}
	svc := newTestService(t, repo, &stubProductLoader{})

	if _, err := svc.UpdateQuantity(context.Background(), userID, productID, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.touchedExpiry.After(originalExpiry) {
		t.Fatalf("expected expiry to slide forward, got %v", repo.touchedExpiry)
	}
}

func newTestService(t *testing.T, repo CartRepository, loader productLoader) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, loader, config.CartConfig{ExpiryDays: 30})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProductLoader struct {
	product *models.Product
	err     error
}

func (s *stubProductLoader) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

type stubCartRepo struct {
	cart           *models.Cart
	created        *models.Cart
	upserted       []models.CartItem
	deletedItems   int
	setAffected    int64
	deleteAffected int64
	touchedExpiry  time.Time
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) CartRepository { return s }

func (s *stubCartRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil {
		if s.created != nil {
			return s.created, nil
		}
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *stubCartRepo) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.ID = uuid.New()
	s.created = cart
	return cart, nil
}

func (s *stubCartRepo) Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	s.touchedExpiry = expiresAt
	return nil
}

func (s *stubCartRepo) UpsertItem(ctx context.Context, item *models.CartItem) error {
	s.upserted = append(s.upserted, *item)
	return nil
}

func (s *stubCartRepo) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (int64, error) {
	return s.setAffected, nil
}

func (s *stubCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (int64, error) {
	if s.deleteAffected > 0 {
		s.deletedItems++
	}
	return s.deleteAffected, nil
}

func (s *stubCartRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	s.cart = nil
	return nil
}
