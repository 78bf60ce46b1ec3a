package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type clock func() time.Time

// Service exposes cart persistence operations. A user owns at most one cart;
// every mutation slides the expiry window forward.
type Service interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog productLoader
	expiry  time.Duration
	now     clock
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, catalog productLoader, cfg config.CartConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		expiry:  cfg.Expiry(),
		now:     time.Now,
	}, nil
}

// AddItem merges the product into the user's cart. Adding a product already
// in the cart increments its quantity instead of duplicating the line.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	// Product existence and active state are checked at add-time only;
	// checkout re-prices but does not re-validate availability.
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	var saved *models.Cart
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		record, err := s.ensureCart(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		if err := txRepo.UpsertItem(ctx, &models.CartItem{
			CartID:    record.ID,
			ProductID: productID,
			Quantity:  qty,
		}); err != nil {
			return err
		}

		saved, err = txRepo.FindByUser(ctx, userID)
		return err
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart item")
	}

	return saved, nil
}

// UpdateQuantity overwrites one line's quantity. Zero removes the line.
func (s *service) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	var saved *models.Cart
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		record, err := s.requireCart(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		affected, err := txRepo.SetItemQuantity(ctx, record.ID, productID, qty)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		if err := txRepo.Touch(ctx, record.ID, s.now().Add(s.expiry)); err != nil {
			return err
		}

		saved, err = txRepo.FindByUser(ctx, userID)
		return err
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}

	return saved, nil
}

// RemoveItem drops one line from the cart.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var saved *models.Cart
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		record, err := s.requireCart(ctx, txRepo, userID)
		if err != nil {
			return err
		}

		affected, err := txRepo.DeleteItem(ctx, record.ID, productID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		if err := txRepo.Touch(ctx, record.ID, s.now().Add(s.expiry)); err != nil {
			return err
		}

		saved, err = txRepo.FindByUser(ctx, userID)
		return err
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}

	return saved, nil
}

// Clear removes the cart entirely. Clearing an absent cart is a no-op.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// GetCart returns the user's cart, or not-found when none exists or the
// sliding window lapsed. Expired carts read as missing; the janitor reaps
// the rows later.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	record, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if s.now().After(record.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return record, nil
}

// ensureCart finds the user's cart or creates one, refreshing the expiry
// either way.
func (s *service) ensureCart(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	expiresAt := s.now().Add(s.expiry)

	record, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return repo.Create(ctx, &models.Cart{
			UserID:    userID,
			ExpiresAt: expiresAt,
		})
	}

	if err := repo.Touch(ctx, record.ID, expiresAt); err != nil {
		return nil, err
	}
	record.ExpiresAt = expiresAt
	return record, nil
}

func (s *service) requireCart(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	record, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, err
	}
	return record, nil
}
