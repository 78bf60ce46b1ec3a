package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is one purchased product line with its price locked at purchase.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Title          string    `gorm:"column:title;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
