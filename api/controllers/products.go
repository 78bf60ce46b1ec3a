package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/api/responses"
	"github.com/assetdeck/assetdeck-backend/internal/catalog"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

type productResponse struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	PriceCents     int       `json:"price_cents"`
	SalePriceCents *int      `json:"sale_price_cents,omitempty"`
	Freebie        bool      `json:"freebie"`
	CreatedAt      time.Time `json:"created_at"`
}

func newProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:             product.ID,
		Title:          product.Title,
		Slug:           product.Slug,
		PriceCents:     product.PriceCents,
		SalePriceCents: product.SalePriceCents,
		Freebie:        product.Freebie,
		CreatedAt:      product.CreatedAt,
	}
}

// ProductList pages through active catalog listings.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		products, err := svc.ListActive(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(products))
		for _, product := range products {
			out = append(out, newProductResponse(product))
		}
		responses.WriteSuccess(w, out)
	}
}

// ProductDetail resolves one active listing by slug.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		product, err := svc.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(*product))
	}
}
