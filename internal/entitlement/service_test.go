package entitlement

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

func TestFreeProductAllowedWithoutLicense(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &models.Product{ID: uuid.New(), Freebie: true, IsActive: true}, nil)

	decision, err := svc.CanDownload(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed || decision.Reason != enums.EntitlementReasonFreeProduct {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestNoLicenseDenied(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &models.Product{ID: uuid.New(), IsActive: true}, nil)

	decision, err := svc.CanDownload(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed || decision.Reason != enums.EntitlementReasonNoLicense {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	denial := DenialError(decision)
	if denial == nil || denial.Code() != pkgerrors.CodePaymentRequired {
		t.Fatalf("missing license must map to payment-required, got %v", denial)
	}
	if pkgerrors.MetadataFor(denial.Code()).HTTPStatus != http.StatusPaymentRequired {
		t.Fatal("payment-required must surface as 402")
	}
}

func TestInactiveLicenseDenied(t *testing.T) {
	t.Parallel()

	license := &models.License{ID: uuid.New(), Active: false, DownloadLimit: 10}
	svc := newTestService(t, &models.Product{ID: uuid.New(), IsActive: true}, license)

	decision, err := svc.CanDownload(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed || decision.Reason != enums.EntitlementReasonInactive {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	denial := DenialError(decision)
	if denial == nil || denial.Code() != pkgerrors.CodeEntitlement {
		t.Fatalf("inactive license must map to entitlement denial, got %v", denial)
	}
}

func TestExpiredLicenseCountsAsInactive(t *testing.T) {
	t.Parallel()

	expired := time.Now().Add(-time.Hour)
	license := &models.License{ID: uuid.New(), Active: true, ExpiresAt: &expired, DownloadLimit: 10}
	svc := newTestService(t, &models.Product{ID: uuid.New(), IsActive: true}, license)

	decision, err := svc.CanDownload(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Reason != enums.EntitlementReasonInactive {
		t.Fatalf("expired license must read as inactive, got %s", decision.Reason)
	}
}

func TestExhaustedLicenseDenied(t *testing.T) {
	t.Parallel()

	license := &models.License{ID: uuid.New(), Active: true, DownloadCount: 10, DownloadLimit: 10}
	svc := newTestService(t, &models.Product{ID: uuid.New(), IsActive: true}, license)

	decision, err := svc.CanDownload(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed || decision.Reason != enums.EntitlementReasonLimitExceeded {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestUsableLicenseAllowed(t *testing.T) {
	t.Parallel()

	license := &models.License{ID: uuid.New(), Active: true, DownloadCount: 3, DownloadLimit: 10}
	svc := newTestService(t, &models.Product{ID: uuid.New(), IsActive: true}, license)

	decision, err := svc.CanDownload(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed || decision.Reason != enums.EntitlementReasonLicensed {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if decision.License == nil {
		t.Fatal("allowed decisions must carry the license")
	}
}

func newTestService(t *testing.T, product *models.Product, license *models.License) Service {
	t.Helper()
	svc, err := NewService(
		productLoaderFunc(func(ctx context.Context, id uuid.UUID) (*models.Product, error) {
			return product, nil
		}),
		licenseLoaderFunc(func(ctx context.Context, userID, productID uuid.UUID) (*models.License, error) {
			return license, nil
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type productLoaderFunc func(ctx context.Context, id uuid.UUID) (*models.Product, error)

func (fn productLoaderFunc) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return fn(ctx, id)
}

type licenseLoaderFunc func(ctx context.Context, userID, productID uuid.UUID) (*models.License, error)

func (fn licenseLoaderFunc) Get(ctx context.Context, userID, productID uuid.UUID) (*models.License, error) {
	return fn(ctx, userID, productID)
}
