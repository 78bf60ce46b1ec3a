package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

// Order snapshots a checkout at purchase time. Prices are locked when the
// order is created and never follow later catalog changes. Completed orders
// are immutable audit records.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Currency        enums.Currency    `gorm:"column:currency;not null;default:'USD'"`
	LicenseType     enums.LicenseType `gorm:"column:license_type;type:license_type;not null;default:'basic'"`
	TotalCents      int               `gorm:"column:total_cents;not null"`
	PaymentIntentID string            `gorm:"column:payment_intent_id;not null;unique"`
	FailureReason   *string           `gorm:"column:failure_reason"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CompletedAt     *time.Time        `gorm:"column:completed_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
