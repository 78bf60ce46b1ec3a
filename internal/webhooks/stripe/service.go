package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v83"

	"github.com/assetdeck/assetdeck-backend/internal/checkout"
	"github.com/assetdeck/assetdeck-backend/internal/orders"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

type orderSettler interface {
	CompleteCheckout(ctx context.Context, conf orders.Confirmation) (*models.Order, error)
	FailCheckout(ctx context.Context, conf orders.Confirmation, reason string) error
}

type accessPassManager interface {
	ActivateAccessPass(ctx context.Context, providerRef string) error
	DeactivateAccessPass(ctx context.Context, providerRef string, status enums.SubscriptionStatus) error
}

type replayGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Orders orderSettler
	Passes accessPassManager
	Guard  replayGuard
	Logger *logger.Logger
}

// Service settles asynchronous payment outcomes. Provider event ids are
// deduplicated in Redis before any handler runs; the handlers themselves are
// idempotent on top of that, so a crashed delivery can always be replayed.
type Service struct {
	orders orderSettler
	passes accessPassManager
	guard  replayGuard
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order settler required")
	}
	if params.Passes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "access pass manager required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "replay guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders: params.Orders,
		passes: params.Passes,
		guard:  params.Guard,
		logg:   params.Logger,
	}, nil
}

// HandleEvent routes one verified provider event. Already-seen event ids
// return nil immediately; a failed handler clears the seen mark so the
// provider's redelivery gets another attempt.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	ctx = s.logg.WithField(ctx, "stripe_event_id", event.ID)

	seen, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check event replay")
	}
	if seen {
		s.logg.Info(ctx, "webhook event replayed, skipping")
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
			s.logg.Warn(ctx, "failed to clear replay mark: "+delErr.Error())
		}
		return err
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.intentSucceeded(ctx, &pi)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.intentFailed(ctx, &pi)
	case stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, event.Type, &sub)
	default:
		return nil
	}
}

func (s *Service) intentSucceeded(ctx context.Context, pi *stripe.PaymentIntent) error {
	ctx = s.logg.WithField(ctx, "payment_intent_id", pi.ID)

	if pi.Metadata[checkout.MetaKind] == checkout.KindAccessPass {
		if err := s.passes.ActivateAccessPass(ctx, pi.ID); err != nil {
			return err
		}
		s.logg.Info(ctx, "access pass activated")
		return nil
	}

	conf, err := orders.DecodeMetadata(pi.ID, pi.Metadata)
	if err != nil {
		return err
	}
	if _, err := s.orders.CompleteCheckout(ctx, conf); err != nil {
		return err
	}
	s.logg.Info(ctx, "order settled from webhook")
	return nil
}

func (s *Service) intentFailed(ctx context.Context, pi *stripe.PaymentIntent) error {
	ctx = s.logg.WithField(ctx, "payment_intent_id", pi.ID)

	reason := "payment_failed"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		reason = pi.LastPaymentError.Msg
	}

	if pi.Metadata[checkout.MetaKind] == checkout.KindAccessPass {
		return s.passes.DeactivateAccessPass(ctx, pi.ID, enums.SubscriptionStatusIncomplete)
	}

	conf, err := orders.DecodeMetadata(pi.ID, pi.Metadata)
	if err != nil {
		// Metadata this intent carries will never become decodable; record
		// nothing rather than making the provider redeliver forever.
		s.logg.Warn(ctx, "failed intent carries undecodable metadata, skipping")
		return nil
	}
	return s.orders.FailCheckout(ctx, conf, reason)
}

func (s *Service) syncSubscription(ctx context.Context, eventType stripe.EventType, sub *stripe.Subscription) error {
	ctx = s.logg.WithField(ctx, "provider_sub_id", sub.ID)

	status := enums.SubscriptionStatusCanceled
	if eventType != stripe.EventTypeCustomerSubscriptionDeleted {
		parsed, err := enums.ParseSubscriptionStatus(string(sub.Status))
		if err != nil {
			s.logg.Warn(ctx, "unknown subscription status "+string(sub.Status)+", treating as canceled")
		} else {
			status = parsed
		}
	}

	if status == enums.SubscriptionStatusActive {
		return s.passes.ActivateAccessPass(ctx, sub.ID)
	}
	return s.passes.DeactivateAccessPass(ctx, sub.ID, status)
}
