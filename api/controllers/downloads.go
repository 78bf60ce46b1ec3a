package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/assetdeck/assetdeck-backend/api/responses"
	"github.com/assetdeck/assetdeck-backend/internal/downloads"
	"github.com/assetdeck/assetdeck-backend/internal/entitlement"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

type downloadGrantResponse struct {
	URL              string `json:"url"`
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
	Reason           string `json:"reason"`
}

// DownloadRequest checks entitlement for the product and, when allowed,
// burns a download slot and mints a short-lived single-use grant. Denials
// map to 402 (no license) or 403 (inactive, exhausted).
func DownloadRequest(ent entitlement.Service, issuer downloads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ent == nil || issuer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "download service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := pathUUID(r, "product id", chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := ent.CanDownload(r.Context(), userID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !decision.Allowed {
			responses.WriteError(r.Context(), logg, w, entitlement.DenialError(decision))
			return
		}

		grant, err := issuer.Issue(r.Context(), userID, decision.Product, decision.License)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, downloadGrantResponse{
			URL:              grant.URL,
			Token:            grant.Token,
			ExpiresInSeconds: int64(grant.ExpiresIn.Seconds()),
			Reason:           string(decision.Reason),
		})
	}
}

// DownloadFile redeems a grant token and redirects to the asset file. Each
// token works exactly once.
func DownloadFile(issuer downloads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if issuer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "download service unavailable"))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "download token required"))
			return
		}

		redemption, err := issuer.Redeem(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"product_id": redemption.ProductID.String(),
				"user_id":    redemption.UserID.String(),
			})
			logg.Info(ctx, "download token redeemed")
		}

		http.Redirect(w, r, redemption.FileURL, http.StatusFound)
	}
}
