package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

func TestGetProductNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(&stubProductRepo{findErr: gorm.ErrRecordNotFound})

	_, err := svc.GetProduct(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for missing product")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestGetProductInactiveHidden(t *testing.T) {
	t.Parallel()

	product := &models.Product{ID: uuid.New(), Title: "Retired Pack", IsActive: false}
	svc := newTestService(&stubProductRepo{product: product})

	_, err := svc.GetProduct(context.Background(), product.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("inactive product must read as not found, got %v", err)
	}
}

func TestGetProductSuccess(t *testing.T) {
	t.Parallel()

	product := &models.Product{ID: uuid.New(), Title: "Icon Pack", PriceCents: 1500, IsActive: true}
	svc := newTestService(&stubProductRepo{product: product})

	got, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != product.ID {
		t.Fatal("expected product to match")
	}
}

func TestGetProductsFailsOnMissingID(t *testing.T) {
	t.Parallel()

	known := models.Product{ID: uuid.New(), IsActive: true}
	svc := newTestService(&stubProductRepo{batch: []models.Product{known}})

	_, err := svc.GetProducts(context.Background(), []uuid.UUID{known.ID, uuid.New()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found for partial batch, got %v", err)
	}
}

func TestGetProductsResolvesBatch(t *testing.T) {
	t.Parallel()

	a := models.Product{ID: uuid.New(), IsActive: true}
	b := models.Product{ID: uuid.New(), IsActive: true}
	svc := newTestService(&stubProductRepo{batch: []models.Product{a, b}})

	got, err := svc.GetProducts(context.Background(), []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
}

func newTestService(repo ProductRepository) Service {
	svc, err := NewService(repo)
	if err != nil {
		panic(err)
	}
	return svc
}

type stubProductRepo struct {
	product *models.Product
	batch   []models.Product
	findErr error
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) ProductRepository { return s }

func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.product == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.product, nil
}

func (s *stubProductRepo) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.FindByID(ctx, uuid.Nil)
}

func (s *stubProductRepo) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.batch, nil
}

func (s *stubProductRepo) ListActive(ctx context.Context, limit, offset int) ([]models.Product, error) {
	return s.batch, nil
}
