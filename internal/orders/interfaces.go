package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
)

// OrderRepository abstracts order persistence.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}
