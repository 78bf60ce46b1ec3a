package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/api/responses"
	"github.com/assetdeck/assetdeck-backend/internal/orders"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

type orderItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	Status      string              `json:"status"`
	Currency    string              `json:"currency"`
	LicenseType string              `json:"license_type"`
	TotalCents  int                 `json:"total_cents"`
	Items       []orderItemResponse `json:"items"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func newOrderResponse(order models.Order) orderResponse {
	resp := orderResponse{
		ID:          order.ID,
		Status:      string(order.Status),
		Currency:    string(order.Currency),
		LicenseType: string(order.LicenseType),
		TotalCents:  order.TotalCents,
		Items:       []orderItemResponse{},
		CompletedAt: order.CompletedAt,
		CreatedAt:   order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:      item.ProductID,
			Title:          item.Title,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return resp
}

// OrderList returns the user's order history.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
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

		out := make([]orderResponse, 0, len(rows))
		for _, order := range rows {
			out = append(out, newOrderResponse(order))
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderDetail returns one order scoped to its owner.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "order id", chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}
