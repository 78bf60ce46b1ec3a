package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/internal/licenses"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartCleaner interface {
	ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// Confirmation carries everything needed to settle a checkout: the provider
// intent id plus the order snapshot that was locked at intent creation.
type Confirmation struct {
	PaymentIntentID string
	UserID          uuid.UUID
	LicenseType     enums.LicenseType
	Currency        enums.Currency
	AmountCents     int64
	Items           []ConfirmationItem
}

// ConfirmationItem is one purchased line with its locked unit price.
type ConfirmationItem struct {
	ProductID      uuid.UUID
	Title          string
	Quantity       int
	UnitPriceCents int
}

// Service settles checkouts. Completion is idempotent per payment intent id:
// replayed confirmations return the original order untouched.
type Service interface {
	CompleteCheckout(ctx context.Context, conf Confirmation) (*models.Order, error)
	FailCheckout(ctx context.Context, conf Confirmation, reason string) error
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

type service struct {
	repo     OrderRepository
	licenses licenses.Service
	carts    cartCleaner
	tx       txRunner
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order settlement service.
func NewService(repo OrderRepository, licenseSvc licenses.Service, carts cartCleaner, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if licenseSvc == nil {
		return nil, fmt.Errorf("license service required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart cleaner required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		licenses: licenseSvc,
		carts:    carts,
		tx:       tx,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// CompleteCheckout materializes the order, grants one license per item and
// drops the user's cart, all in one transaction. Keyed on the payment intent
// id: a replay finds the existing order and returns it without side effects.
func (s *service) CompleteCheckout(ctx context.Context, conf Confirmation) (*models.Order, error) {
	if err := validateConfirmation(conf); err != nil {
		return nil, err
	}

	ctx = s.logg.WithField(ctx, "payment_intent_id", conf.PaymentIntentID)

	if existing, err := s.repo.FindByPaymentIntent(ctx, conf.PaymentIntentID); err == nil {
		s.logg.Info(ctx, "checkout confirmation replayed, returning existing order")
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up order")
	}

	var saved *models.Order
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		completedAt := s.now()
		order := &models.Order{
			UserID:          conf.UserID,
			Status:          enums.OrderStatusCompleted,
			Currency:        conf.Currency,
			LicenseType:     conf.LicenseType,
			TotalCents:      int(conf.AmountCents),
			PaymentIntentID: conf.PaymentIntentID,
			CompletedAt:     &completedAt,
		}
		for _, item := range conf.Items {
			order.Items = append(order.Items, models.OrderItem{
				ProductID:      item.ProductID,
				Title:          item.Title,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			})
		}

		created, err := txRepo.Create(ctx, order)
		if err != nil {
			return err
		}

		for _, item := range conf.Items {
			if _, err := s.licenses.CreateTx(ctx, tx, conf.UserID, item.ProductID, created.ID, conf.LicenseType); err != nil {
				return err
			}
		}

		if err := s.carts.ClearTx(ctx, tx, conf.UserID); err != nil {
			return err
		}

		saved = created
		return nil
	}); err != nil {
		// Two confirmations raced past the lookup; the unique intent key
		// decided the winner. Return theirs.
		if existing, lookupErr := s.repo.FindByPaymentIntent(ctx, conf.PaymentIntentID); lookupErr == nil {
			s.logg.Info(ctx, "checkout completion race resolved to existing order")
			return existing, nil
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete checkout")
	}

	s.logg.Info(ctx, "checkout completed")
	return saved, nil
}

// FailCheckout records a declined payment. An existing pending order is
// marked failed; with no order yet, a failed snapshot is written for audit.
// Failing an already-settled intent is a no-op.
func (s *service) FailCheckout(ctx context.Context, conf Confirmation, reason string) error {
	if conf.PaymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	ctx = s.logg.WithField(ctx, "payment_intent_id", conf.PaymentIntentID)

	existing, err := s.repo.FindByPaymentIntent(ctx, conf.PaymentIntentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up order")
		}

		order := &models.Order{
			UserID:          conf.UserID,
			Status:          enums.OrderStatusFailed,
			Currency:        conf.Currency,
			LicenseType:     conf.LicenseType,
			TotalCents:      int(conf.AmountCents),
			PaymentIntentID: conf.PaymentIntentID,
			FailureReason:   &reason,
		}
		for _, item := range conf.Items {
			order.Items = append(order.Items, models.OrderItem{
				ProductID:      item.ProductID,
				Title:          item.Title,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			})
		}
		if _, err := s.repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed checkout")
		}
		s.logg.Warn(ctx, "checkout failed, recorded declined order")
		return nil
	}

	if existing.Status != enums.OrderStatusPending {
		return nil
	}
	if err := s.repo.MarkFailed(ctx, existing.ID, reason); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order failed")
	}
	s.logg.Warn(ctx, "checkout failed, order marked failed")
	return nil
}

// GetOrder loads one order scoped to its owner.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and order ids are required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListForUser returns the user's order history.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

func validateConfirmation(conf Confirmation) error {
	if conf.PaymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	if conf.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !conf.LicenseType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid license type")
	}
	if !conf.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if conf.AmountCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	if len(conf.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "confirmation must contain at least one item")
	}
	for _, item := range conf.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id is required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item price must be non-negative")
		}
	}
	return nil
}
