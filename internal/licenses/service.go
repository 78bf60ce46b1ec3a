package licenses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

// Service owns the license ledger. Creation is idempotent per
// (user, product, order) triple; download consumption is a conditional
// update that can never overshoot the quota.
type Service interface {
	Create(ctx context.Context, userID, productID, orderID uuid.UUID, licenseType enums.LicenseType) (*models.License, error)
	CreateTx(ctx context.Context, tx *gorm.DB, userID, productID, orderID uuid.UUID, licenseType enums.LicenseType) (*models.License, error)
	Get(ctx context.Context, userID, productID uuid.UUID) (*models.License, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.License, error)
	ConsumeDownload(ctx context.Context, licenseID uuid.UUID) error
}

type service struct {
	repo      LicenseRepository
	licensing config.LicensingConfig
}

// NewService builds a license service backed by the provided repository.
func NewService(repo LicenseRepository, licensing config.LicensingConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	return &service{repo: repo, licensing: licensing}, nil
}

// Create issues a license for a purchase, or returns the existing one when
// the triple was already granted. Replays (webhook redelivery) land on the
// unique index and resolve to a find.
func (s *service) Create(ctx context.Context, userID, productID, orderID uuid.UUID, licenseType enums.LicenseType) (*models.License, error) {
	return s.CreateTx(ctx, nil, userID, productID, orderID, licenseType)
}

// CreateTx is Create running against the caller's transaction so order
// completion can grant licenses atomically with the order snapshot.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, userID, productID, orderID uuid.UUID, licenseType enums.LicenseType) (*models.License, error) {
	if userID == uuid.Nil || productID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user, product and order ids are required")
	}
	if !licenseType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid license type")
	}

	repo := s.repo.WithTx(tx)

	if existing, err := repo.FindByTriple(ctx, userID, productID, orderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up license")
	}

	license := &models.License{
		UserID:        userID,
		ProductID:     productID,
		OrderID:       orderID,
		Type:          licenseType,
		DownloadCount: 0,
		DownloadLimit: s.licensing.DownloadLimitFor(licenseType),
		Active:        true,
	}

	created, err := repo.Create(ctx, license)
	if err != nil {
		// Lost the insert race: another writer granted the same triple
		// between our find and create. Resolve to theirs.
		if db.IsUniqueViolation(err, "idx_license_triple") {
			return repo.FindByTriple(ctx, userID, productID, orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license")
	}
	return created, nil
}

// Get returns the most recent active license for the user and product, or
// nil when none exists. Absence is a normal answer here, not an error.
func (s *service) Get(ctx context.Context, userID, productID uuid.UUID) (*models.License, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and product ids are required")
	}

	license, err := s.repo.FindLatestActive(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license")
	}
	return license, nil
}

// GetByID loads one license or not-found.
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	license, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license")
	}
	return license, nil
}

// ListForUser returns the user's full license ledger.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.License, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list licenses")
	}
	return rows, nil
}

// ConsumeDownload burns one download slot. Zero rows affected means the
// quota is spent or the license is inactive; callers map that to the
// entitlement denial.
func (s *service) ConsumeDownload(ctx context.Context, licenseID uuid.UUID) error {
	if licenseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	affected, err := s.repo.IncrementDownload(ctx, licenseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume download")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeEntitlement, "download limit exceeded")
	}
	return nil
}
