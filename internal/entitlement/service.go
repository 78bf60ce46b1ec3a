package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type licenseLoader interface {
	Get(ctx context.Context, userID, productID uuid.UUID) (*models.License, error)
}

// Decision is the entitlement verdict for one download attempt. The reason
// is always set, for allowed and denied outcomes alike, so callers can map
// it to a status code and clients can render the right upsell.
type Decision struct {
	Allowed bool
	Reason  enums.EntitlementReason
	License *models.License
	Product *models.Product
}

// Service answers "may this user download this product right now".
type Service interface {
	CanDownload(ctx context.Context, userID, productID uuid.UUID) (*Decision, error)
}

type service struct {
	catalog  productLoader
	licenses licenseLoader
	now      func() time.Time
}

// NewService builds the entitlement checker.
func NewService(catalog productLoader, licenses licenseLoader) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if licenses == nil {
		return nil, fmt.Errorf("license loader required")
	}
	return &service{catalog: catalog, licenses: licenses, now: time.Now}, nil
}

// CanDownload evaluates the denial reasons in fixed precedence: free product
// short-circuits everything, then missing license, then inactive or expired
// license, then spent quota.
func (s *service) CanDownload(ctx context.Context, userID, productID uuid.UUID) (*Decision, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and product ids are required")
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.Freebie {
		return &Decision{
			Allowed: true,
			Reason:  enums.EntitlementReasonFreeProduct,
			Product: product,
		}, nil
	}

	license, err := s.licenses.Get(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if license == nil {
		return &Decision{
			Allowed: false,
			Reason:  enums.EntitlementReasonNoLicense,
			Product: product,
		}, nil
	}

	if !license.Usable(s.now()) {
		return &Decision{
			Allowed: false,
			Reason:  enums.EntitlementReasonInactive,
			License: license,
			Product: product,
		}, nil
	}

	if license.Exhausted() {
		return &Decision{
			Allowed: false,
			Reason:  enums.EntitlementReasonLimitExceeded,
			License: license,
			Product: product,
		}, nil
	}

	return &Decision{
		Allowed: true,
		Reason:  enums.EntitlementReasonLicensed,
		License: license,
		Product: product,
	}, nil
}

// DenialError maps a denied decision to the transport error taxonomy:
// missing license is a payment problem (402), everything else is a
// forbidden download (403).
func DenialError(decision *Decision) *pkgerrors.Error {
	if decision == nil || decision.Allowed {
		return nil
	}
	details := map[string]string{"reason": string(decision.Reason)}
	if decision.Reason == enums.EntitlementReasonNoLicense {
		return pkgerrors.New(pkgerrors.CodePaymentRequired, "license required").WithDetails(details)
	}
	return pkgerrors.New(pkgerrors.CodeEntitlement, "download not permitted").WithDetails(details)
}
