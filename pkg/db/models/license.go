package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

// License grants download rights for one product tied to one purchase (or a
// free grant). Exactly one license exists per (user, product, order) triple;
// a re-purchase creates a new license instead of touching the old one.
type License struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_license_triple"`
	ProductID     uuid.UUID         `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_license_triple"`
	OrderID       uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_license_triple"`
	Type          enums.LicenseType `gorm:"column:type;type:license_type;not null"`
	DownloadCount int               `gorm:"column:download_count;not null;default:0"`
	DownloadLimit int               `gorm:"column:download_limit;not null"`
	Active        bool              `gorm:"column:active;not null;default:true"`
	ExpiresAt     *time.Time        `gorm:"column:expires_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Usable reports whether the license currently grants downloads, ignoring
// the quota (the quota check has its own reason code).
func (l License) Usable(now time.Time) bool {
	if !l.Active {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	return true
}

// Exhausted reports whether the download quota is spent.
func (l License) Exhausted() bool {
	return l.DownloadCount >= l.DownloadLimit
}
