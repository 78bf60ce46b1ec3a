package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetdeck/assetdeck-backend/internal/orders"
	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
	"github.com/assetdeck/assetdeck-backend/pkg/payment"
)

// Payment intent metadata markers distinguishing order checkouts from
// access-pass purchases on the shared webhook path.
const (
	MetaKind       = "kind"
	KindOrder      = "order"
	KindAccessPass = "access_pass"
)

type productBatchLoader interface {
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type orderCompleter interface {
	CompleteCheckout(ctx context.Context, conf orders.Confirmation) (*models.Order, error)
}

// Item is one requested checkout line.
type Item struct {
	ProductID uuid.UUID
	Quantity  int
}

// IntentResult is the outcome of opening a checkout. Free checkouts settle
// immediately and carry the order id; paid checkouts carry the client secret
// the frontend confirms against the provider.
type IntentResult struct {
	IsFree          bool
	ClientSecret    string
	PaymentIntentID string
	OrderID         *uuid.UUID
	AmountCents     int64
	Currency        enums.Currency
}

// AccessPassResult is the outcome of starting an access-pass purchase.
type AccessPassResult struct {
	SubscriptionID string
	ClientSecret   string
	Tier           enums.AccessPassTier
	Status         enums.SubscriptionStatus
}

// Service orchestrates checkout against the payment backend.
type Service interface {
	CreatePaymentIntent(ctx context.Context, userID uuid.UUID, email string, items []Item, licenseType enums.LicenseType) (*IntentResult, error)
	CreateAccessPass(ctx context.Context, userID uuid.UUID, email string, tier enums.AccessPassTier) (*AccessPassResult, error)
	ActivateAccessPass(ctx context.Context, providerRef string) error
	DeactivateAccessPass(ctx context.Context, providerRef string, status enums.SubscriptionStatus) error
}

type service struct {
	catalog   productBatchLoader
	backend   payment.Backend
	orders    orderCompleter
	subs      SubscriptionRepository
	licensing config.LicensingConfig
	payments  config.PaymentConfig
	stripe    config.StripeConfig
	logg      *logger.Logger
}

// NewService builds the checkout orchestrator.
func NewService(
	catalog productBatchLoader,
	backend payment.Backend,
	orderSvc orderCompleter,
	subs SubscriptionRepository,
	cfg *config.Config,
	logg *logger.Logger,
) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if backend == nil {
		return nil, fmt.Errorf("payment backend required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order completer required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		catalog:   catalog,
		backend:   backend,
		orders:    orderSvc,
		subs:      subs,
		licensing: cfg.Licensing,
		payments:  cfg.Payment,
		stripe:    cfg.Stripe,
		logg:      logg,
	}, nil
}

// CreatePaymentIntent splits the requested items into freebies and paid
// lines. Freebies settle immediately as a zero-price completed order; paid
// lines open a provider intent whose metadata can rebuild the order when the
// asynchronous confirmation lands. An all-free checkout never touches the
// payment backend.
func (s *service) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, email string, items []Item, licenseType enums.LicenseType) (*IntentResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	if !licenseType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid license type")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be at least 1")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	currency, err := enums.ParseCurrency(s.payments.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid configured currency")
	}

	var freeItems, paidItems []orders.ConfirmationItem
	var total int64
	for _, item := range items {
		product := products[item.ProductID]

		unit, err := unitPriceCents(product, licenseType, s.licensing)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price checkout item")
		}

		line := orders.ConfirmationItem{
			ProductID:      product.ID,
			Title:          product.Title,
			Quantity:       item.Quantity,
			UnitPriceCents: unit,
		}
		if unit == 0 {
			freeItems = append(freeItems, line)
			continue
		}
		paidItems = append(paidItems, line)
		total += int64(unit) * int64(item.Quantity)
	}

	var freeOrderID *uuid.UUID
	if len(freeItems) > 0 {
		freeOrder, err := s.orders.CompleteCheckout(ctx, orders.Confirmation{
			PaymentIntentID: "free_" + uuid.NewString(),
			UserID:          userID,
			LicenseType:     licenseType,
			Currency:        currency,
			AmountCents:     0,
			Items:           freeItems,
		})
		if err != nil {
			return nil, err
		}
		freeOrderID = &freeOrder.ID
		s.logg.Info(s.logg.WithField(ctx, "order_id", freeOrder.ID.String()), "free items granted without payment")
	}

	if len(paidItems) == 0 {
		return &IntentResult{
			IsFree:   true,
			OrderID:  freeOrderID,
			Currency: currency,
		}, nil
	}

	conf := orders.Confirmation{
		UserID:      userID,
		LicenseType: licenseType,
		Currency:    currency,
		AmountCents: total,
		Items:       paidItems,
	}
	metadata, err := orders.EncodeMetadata(conf)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode intent metadata")
	}
	metadata[MetaKind] = KindOrder

	callCtx, cancel := context.WithTimeout(ctx, s.payments.RequestTimeout)
	defer cancel()

	customer, err := s.backend.GetOrCreateCustomer(callCtx, userID.String(), email)
	if err != nil {
		return nil, providerError(err, "resolve payment customer")
	}

	intent, err := s.backend.CreatePaymentIntent(callCtx, payment.IntentRequest{
		AmountCents: total,
		Currency:    string(currency),
		CustomerID:  customer.ID,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, providerError(err, "create payment intent")
	}

	return &IntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		OrderID:         freeOrderID,
		AmountCents:     total,
		Currency:        currency,
	}, nil
}

// CreateAccessPass starts a catalog-wide access pass purchase. Recurring
// tiers open a provider subscription; the lifetime tier settles as a one-time
// payment intent. A user can hold at most one entitled pass.
func (s *service) CreateAccessPass(ctx context.Context, userID uuid.UUID, email string, tier enums.AccessPassTier) (*AccessPassResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid access pass tier")
	}

	if _, err := s.subs.FindEntitledByUser(ctx, userID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active access pass already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up access pass")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.payments.RequestTimeout)
	defer cancel()

	customer, err := s.backend.GetOrCreateCustomer(callCtx, userID.String(), email)
	if err != nil {
		return nil, providerError(err, "resolve payment customer")
	}

	if tier.IsRecurring() {
		return s.createRecurringPass(ctx, callCtx, userID, customer.ID, tier)
	}
	return s.createLifetimePass(ctx, callCtx, userID, customer.ID)
}

func (s *service) createRecurringPass(ctx, callCtx context.Context, userID uuid.UUID, customerID string, tier enums.AccessPassTier) (*AccessPassResult, error) {
	priceID := s.stripe.AccessPassPriceID
	if tier == enums.AccessPassTierYearly {
		priceID = s.stripe.AccessPassYearlyID
	}
	if priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "access pass price not configured")
	}

	sub, err := s.backend.CreateSubscription(callCtx, payment.SubscriptionRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		Metadata: map[string]string{
			MetaKind:  KindAccessPass,
			"user_id": userID.String(),
			"tier":    string(tier),
		},
	})
	if err != nil {
		return nil, providerError(err, "create subscription")
	}

	status, err := enums.ParseSubscriptionStatus(sub.Status)
	if err != nil {
		status = enums.SubscriptionStatusIncomplete
	}

	providerRef := sub.ID
	if _, err := s.subs.Create(ctx, &models.Subscription{
		UserID:             userID,
		Tier:               tier,
		Status:             status,
		ProviderCustomerID: customerID,
		ProviderSubID:      &providerRef,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist access pass")
	}

	return &AccessPassResult{
		SubscriptionID: sub.ID,
		ClientSecret:   sub.ClientSecret,
		Tier:           tier,
		Status:         status,
	}, nil
}

func (s *service) createLifetimePass(ctx, callCtx context.Context, userID uuid.UUID, customerID string) (*AccessPassResult, error) {
	intent, err := s.backend.CreatePaymentIntent(callCtx, payment.IntentRequest{
		AmountCents: s.stripe.LifetimePriceCents,
		Currency:    s.payments.Currency,
		CustomerID:  customerID,
		Metadata: map[string]string{
			MetaKind:  KindAccessPass,
			"user_id": userID.String(),
			"tier":    string(enums.AccessPassTierLifetime),
		},
	})
	if err != nil {
		return nil, providerError(err, "create lifetime intent")
	}

	// The intent id doubles as the provider reference; webhook settlement
	// flips the row to active.
	providerRef := intent.ID
	if _, err := s.subs.Create(ctx, &models.Subscription{
		UserID:             userID,
		Tier:               enums.AccessPassTierLifetime,
		Status:             enums.SubscriptionStatusIncomplete,
		ProviderCustomerID: customerID,
		ProviderSubID:      &providerRef,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist access pass")
	}

	return &AccessPassResult{
		SubscriptionID: intent.ID,
		ClientSecret:   intent.ClientSecret,
		Tier:           enums.AccessPassTierLifetime,
		Status:         enums.SubscriptionStatusIncomplete,
	}, nil
}

// ActivateAccessPass flips the pass identified by the provider reference to
// active. Called from webhook settlement; unknown references are ignored so
// replays stay harmless.
func (s *service) ActivateAccessPass(ctx context.Context, providerRef string) error {
	if providerRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}
	if _, err := s.subs.UpdateStatusByProviderRef(ctx, providerRef, enums.SubscriptionStatusActive); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate access pass")
	}
	return nil
}

// DeactivateAccessPass records a provider-side lapse (decline, cancellation).
func (s *service) DeactivateAccessPass(ctx context.Context, providerRef string, status enums.SubscriptionStatus) error {
	if providerRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription status")
	}
	if _, err := s.subs.UpdateStatusByProviderRef(ctx, providerRef, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate access pass")
	}
	return nil
}

// providerError maps backend failures onto the dependency code so callers
// surface 503 instead of leaking provider details. Payment calls are never
// retried from here; the client restarts checkout instead.
func providerError(err error, msg string) error {
	if errors.Is(err, payment.ErrDeclined) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment declined")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
