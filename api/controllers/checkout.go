package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/api/middleware"
	"github.com/assetdeck/assetdeck-backend/api/responses"
	"github.com/assetdeck/assetdeck-backend/api/validators"
	checkoutsvc "github.com/assetdeck/assetdeck-backend/internal/checkout"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type checkoutIntentRequest struct {
	Items       []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	LicenseType string                `json:"license_type" validate:"required,oneof=basic extended"`
}

type checkoutIntentResponse struct {
	IsFree          bool       `json:"is_free"`
	ClientSecret    string     `json:"client_secret,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	AmountCents     int64      `json:"amount_cents"`
	Currency        string     `json:"currency"`
}

type accessPassRequest struct {
	Tier string `json:"tier" validate:"required,oneof=lifetime monthly yearly"`
}

type accessPassResponse struct {
	SubscriptionID string `json:"subscription_id"`
	ClientSecret   string `json:"client_secret,omitempty"`
	Tier           string `json:"tier"`
	Status         string `json:"status"`
}

// CheckoutIntent opens a payment for the requested items. All-free baskets
// settle immediately and report is_free with no client secret.
func CheckoutIntent(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		licenseType, err := enums.ParseLicenseType(payload.LicenseType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid license type"))
			return
		}

		items := make([]checkoutsvc.Item, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, checkoutsvc.Item{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		result, err := svc.CreatePaymentIntent(r.Context(), userID, middleware.EmailFromContext(r.Context()), items, licenseType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkoutIntentResponse{
			IsFree:          result.IsFree,
			ClientSecret:    result.ClientSecret,
			PaymentIntentID: result.PaymentIntentID,
			OrderID:         result.OrderID,
			AmountCents:     result.AmountCents,
			Currency:        string(result.Currency),
		})
	}
}

// AccessPassCreate starts an access-pass purchase. A second entitled pass is
// rejected with a conflict.
func AccessPassCreate(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload accessPassRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier, err := enums.ParseAccessPassTier(payload.Tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier"))
			return
		}

		result, err := svc.CreateAccessPass(r.Context(), userID, middleware.EmailFromContext(r.Context()), tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, accessPassResponse{
			SubscriptionID: result.SubscriptionID,
			ClientSecret:   result.ClientSecret,
			Tier:           string(result.Tier),
			Status:         string(result.Status),
		})
	}
}
