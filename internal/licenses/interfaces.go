package licenses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
)

// LicenseRepository abstracts license persistence.
type LicenseRepository interface {
	WithTx(tx *gorm.DB) LicenseRepository
	Create(ctx context.Context, license *models.License) (*models.License, error)
	FindByTriple(ctx context.Context, userID, productID, orderID uuid.UUID) (*models.License, error)
	FindLatestActive(ctx context.Context, userID, productID uuid.UUID) (*models.License, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.License, error)
	IncrementDownload(ctx context.Context, licenseID uuid.UUID) (int64, error)
	Deactivate(ctx context.Context, licenseID uuid.UUID) error
}
