package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
)

// CartRepository abstracts cart persistence so the service can be exercised
// against stubs.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error
	UpsertItem(ctx context.Context, item *models.CartItem) error
	SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (int64, error)
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (int64, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
