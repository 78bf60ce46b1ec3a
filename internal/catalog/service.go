package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

// Service exposes read-only catalog lookups. The catalog is owned by another
// system; this service never writes product rows.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	ListActive(ctx context.Context, limit, offset int) ([]models.Product, error)
}

type service struct {
	repo ProductRepository
}

// NewService builds a catalog service backed by the provided repository.
func NewService(repo ProductRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// GetProduct returns an active product or not-found.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// GetProductBySlug returns an active product by slug or not-found.
func (s *service) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}

	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// GetProducts resolves a batch of ids to active products. Every requested id
// must resolve; a single missing or inactive product fails the whole batch so
// checkout never prices a partial cart.
func (s *service) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one product id is required")
	}

	products, err := s.repo.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		if p.IsActive {
			byID[p.ID] = p
		}
	}

	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]string{"product_id": id.String()})
		}
	}
	return byID, nil
}

// ListActive pages through the purchasable catalog.
func (s *service) ListActive(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if offset < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offset must be non-negative")
	}
	products, err := s.repo.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}
