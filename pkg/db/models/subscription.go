package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

// Subscription is a catalog-wide access pass. At most one active pass exists
// per user; lifetime passes settle as one-time payments and are recorded
// with a terminal active status.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	Tier               enums.AccessPassTier     `gorm:"column:tier;type:access_pass_tier;not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	ProviderCustomerID string                   `gorm:"column:provider_customer_id"`
	ProviderSubID      *string                  `gorm:"column:provider_sub_id;unique"`
	CurrentPeriodEnd   *time.Time               `gorm:"column:current_period_end"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
