package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
)

// ProductRepository abstracts product persistence for the catalog service.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListActive(ctx context.Context, limit, offset int) ([]models.Product, error)
}
