package licenses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
)

// Repository exposes persistence operations for licenses.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a license repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) LicenseRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new license row.
func (r *Repository) Create(ctx context.Context, license *models.License) (*models.License, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

// FindByTriple loads the license for an exact (user, product, order) triple.
func (r *Repository) FindByTriple(ctx context.Context, userID, productID, orderID uuid.UUID) (*models.License, error) {
	var license models.License
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND order_id = ?", userID, productID, orderID).
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// FindLatestActive loads the most recently created active license for the
// user and product.
func (r *Repository) FindLatestActive(ctx context.Context, userID, productID uuid.UUID) (*models.License, error) {
	var license models.License
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND active = ?", userID, productID, true).
		Order("created_at DESC").
		First(&license).Error
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// FindByID loads one license.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&license).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

// ListByUser returns all licenses owned by the user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.License, error) {
	var rows []models.License
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IncrementDownload burns one download if and only if quota remains and the
// license is active. The ceiling guard lives in the WHERE clause so two
// concurrent consumers can never both take the last slot.
func (r *Repository) IncrementDownload(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ? AND active = ? AND download_count < download_limit", licenseID, true).
		Update("download_count", gorm.Expr("download_count + 1"))
	return res.RowsAffected, res.Error
}

// Deactivate turns the license off (refund or abuse handling).
func (r *Repository) Deactivate(ctx context.Context, licenseID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", licenseID).
		Update("active", false).Error
}
