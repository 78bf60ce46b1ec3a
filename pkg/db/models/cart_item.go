package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one product line in a cart, unique per (cart, product).
// Quantity is always at least 1; dropping to zero deletes the row.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	Quantity  int       `gorm:"column:quantity;not null"`
	AddedAt   time.Time `gorm:"column:added_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
