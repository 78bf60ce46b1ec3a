package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

// Repository exposes persistence operations for orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts an order with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByPaymentIntent loads the order keyed by the provider intent id.
func (r *Repository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_intent_id = ?", paymentIntentID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByID loads one order with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkFailed transitions a pending order to failed with the decline reason.
func (r *Repository) MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":         enums.OrderStatusFailed,
			"failure_reason": reason,
		}).Error
}
