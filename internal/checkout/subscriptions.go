package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

var entitledStatuses = []enums.SubscriptionStatus{
	enums.SubscriptionStatusTrialing,
	enums.SubscriptionStatusActive,
	enums.SubscriptionStatusPastDue,
}

// SubscriptionRepository abstracts access-pass persistence.
type SubscriptionRepository interface {
	WithTx(tx *gorm.DB) SubscriptionRepository
	Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	FindEntitledByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	UpdateStatusByProviderRef(ctx context.Context, providerRef string, status enums.SubscriptionStatus) (int64, error)
}

// SubscriptionRepo exposes persistence operations for access passes.
type SubscriptionRepo struct {
	db *gorm.DB
}

// NewSubscriptionRepo constructs a subscription repository bound to the provided DB.
func NewSubscriptionRepo(db *gorm.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// WithTx binds the repository to a transaction.
func (r *SubscriptionRepo) WithTx(tx *gorm.DB) SubscriptionRepository {
	if tx == nil {
		return r
	}
	return &SubscriptionRepo{db: tx}
}

// Create inserts a subscription row.
func (r *SubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// FindEntitledByUser loads the user's subscription in an entitled state.
func (r *SubscriptionRepo) FindEntitledByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, entitledStatuses).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateStatusByProviderRef transitions the subscription identified by the
// provider's reference (subscription id or lifetime intent id).
func (r *SubscriptionRepo) UpdateStatusByProviderRef(ctx context.Context, providerRef string, status enums.SubscriptionStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("provider_sub_id = ?", providerRef).
		Update("status", status)
	return res.RowsAffected, res.Error
}
