package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
)

// Repository exposes read access to catalog products.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a product repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads one product regardless of active state.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads one product by its catalog slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindManyByIDs loads the products for the requested ids in one query.
func (r *Repository) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListActive returns the active catalog ordered by creation time.
func (r *Repository) ListActive(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
