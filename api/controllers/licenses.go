package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/api/responses"
	"github.com/assetdeck/assetdeck-backend/internal/licenses"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

type licenseResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ProductID          uuid.UUID  `json:"product_id"`
	OrderID            uuid.UUID  `json:"order_id"`
	Type               string     `json:"type"`
	DownloadCount      int        `json:"download_count"`
	DownloadLimit      int        `json:"download_limit"`
	DownloadsRemaining int        `json:"downloads_remaining"`
	Active             bool       `json:"active"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func newLicenseResponse(license models.License) licenseResponse {
	remaining := license.DownloadLimit - license.DownloadCount
	if remaining < 0 {
		remaining = 0
	}
	return licenseResponse{
		ID:                 license.ID,
		ProductID:          license.ProductID,
		OrderID:            license.OrderID,
		Type:               string(license.Type),
		DownloadCount:      license.DownloadCount,
		DownloadLimit:      license.DownloadLimit,
		DownloadsRemaining: remaining,
		Active:             license.Active,
		ExpiresAt:          license.ExpiresAt,
		CreatedAt:          license.CreatedAt,
	}
}

// LicenseList returns every license the user holds, newest first.
func LicenseList(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]licenseResponse, 0, len(rows))
		for _, license := range rows {
			out = append(out, newLicenseResponse(license))
		}
		responses.WriteSuccess(w, out)
	}
}
