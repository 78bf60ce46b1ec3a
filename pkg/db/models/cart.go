package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart holds the pending line items for a user. A user has at most one cart;
// it disappears on successful checkout or after the sliding expiry lapses.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;unique"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
