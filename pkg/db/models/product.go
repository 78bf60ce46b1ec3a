package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product mirrors the catalog listing for a downloadable asset. The catalog
// owns these rows; this service only reads them.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title          string         `gorm:"column:title;not null"`
	Slug           string         `gorm:"column:slug;not null;unique"`
	PriceCents     int            `gorm:"column:price_cents;not null"`
	SalePriceCents *int           `gorm:"column:sale_price_cents"`
	Freebie        bool           `gorm:"column:freebie;not null;default:false"`
	FileManifest   pq.StringArray `gorm:"column:file_manifest;type:text[];not null;default:ARRAY[]::text[]"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePriceCents returns the sale price when present, the list price
// otherwise. Free products always price at zero.
func (p Product) EffectivePriceCents() int {
	if p.Freebie {
		return 0
	}
	if p.SalePriceCents != nil {
		return *p.SalePriceCents
	}
	return p.PriceCents
}
