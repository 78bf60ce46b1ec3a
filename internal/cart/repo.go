package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser loads the user's cart with its items.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// Touch pushes the sliding expiry forward.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("expires_at", expiresAt).Error
}

// UpsertItem inserts the item or, when the (cart, product) pair already
// exists, increments the stored quantity. The conflict target makes
// concurrent adds for the same product additive instead of racy.
func (r *Repository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + EXCLUDED.quantity"),
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(item).Error
}

// SetItemQuantity overwrites the quantity for one line and reports how many
// rows matched.
func (r *Repository) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", quantity)
	return res.RowsAffected, res.Error
}

// DeleteItem removes one line and reports how many rows matched.
func (r *Repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// ClearTx drops the user's cart inside the caller's transaction. Used by
// order settlement so the cart disappears atomically with the order.
func (r *Repository) ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return r.WithTx(tx).DeleteByUser(ctx, userID)
}

// DeleteByUser drops the user's cart; items cascade.
func (r *Repository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Cart{}).Error
}
