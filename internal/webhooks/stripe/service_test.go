package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"

	"github.com/assetdeck/assetdeck-backend/internal/checkout"
	"github.com/assetdeck/assetdeck-backend/internal/orders"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
)

func TestHandleEventSettlesOrder(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	settler := &stubSettler{}
	svc, _ := newTestWebhookService(t, settler, &stubPasses{})

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_1", orderMetadata(t, userID, productID), "")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if settler.completed != 1 {
		t.Fatalf("expected one completion, got %d", settler.completed)
	}
	if settler.lastConf.UserID != userID {
		t.Fatal("confirmation must carry the purchasing user")
	}
	if len(settler.lastConf.Items) != 1 || settler.lastConf.Items[0].ProductID != productID {
		t.Fatalf("confirmation items not reconstructed: %+v", settler.lastConf.Items)
	}
}

func TestHandleEventActivatesAccessPass(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{}
	passes := &stubPasses{}
	svc, _ := newTestWebhookService(t, settler, passes)

	metadata := map[string]string{checkout.MetaKind: checkout.KindAccessPass, "user_id": uuid.NewString()}
	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_pass", metadata, "")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if passes.activated != "pi_pass" {
		t.Fatalf("expected pass activation by intent id, got %q", passes.activated)
	}
	if settler.completed != 0 {
		t.Fatal("access pass events must not settle orders")
	}
}

func TestHandleEventSkipsReplayedDelivery(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{}
	svc, _ := newTestWebhookService(t, settler, &stubPasses{})

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_2", orderMetadata(t, uuid.New(), uuid.New()), "")
	event.ID = "evt_replay"

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if settler.completed != 1 {
		t.Fatalf("replayed delivery must not run the handler again, got %d completions", settler.completed)
	}
}

func TestHandleEventFailureAllowsRedelivery(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{failErr: errors.New("db down")}
	svc, _ := newTestWebhookService(t, settler, &stubPasses{})

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_3", orderMetadata(t, uuid.New(), uuid.New()), "")
	event.ID = "evt_flaky"

	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected handler failure to propagate")
	}

	settler.failErr = nil
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery after failure must be attempted: %v", err)
	}
	if settler.completed != 1 {
		t.Fatalf("expected successful completion on redelivery, got %d", settler.completed)
	}
}

func TestHandleEventRecordsDecline(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{}
	svc, _ := newTestWebhookService(t, settler, &stubPasses{})

	event := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, "pi_4", orderMetadata(t, uuid.New(), uuid.New()), "card_declined")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if settler.failed != 1 {
		t.Fatalf("expected one recorded failure, got %d", settler.failed)
	}
	if settler.lastReason != "card_declined" {
		t.Fatalf("expected decline reason to be carried, got %q", settler.lastReason)
	}
}

func TestHandleEventSubscriptionDeletedDeactivates(t *testing.T) {
	t.Parallel()

	passes := &stubPasses{}
	svc, _ := newTestWebhookService(t, &stubSettler{}, passes)

	raw, err := json.Marshal(map[string]any{"id": "sub_9", "status": "active"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	event := &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypeCustomerSubscriptionDeleted,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if passes.deactivated != "sub_9" || passes.deactivatedTo != enums.SubscriptionStatusCanceled {
		t.Fatalf("deleted subscription must cancel the pass, got %q -> %s", passes.deactivated, passes.deactivatedTo)
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{}
	svc, _ := newTestWebhookService(t, settler, &stubPasses{})

	event := &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event types must be acknowledged, got %v", err)
	}
	if settler.completed != 0 || settler.failed != 0 {
		t.Fatal("unknown event types must not reach the settler")
	}
}

func newTestWebhookService(t *testing.T, settler *stubSettler, passes *stubPasses) (*Service, *memoryGuard) {
	t.Helper()

	guard := &memoryGuard{seen: map[string]bool{}}
	svc, err := NewService(ServiceParams{
		Orders: settler,
		Passes: passes,
		Guard:  guard,
		Logger: logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, guard
}

func orderMetadata(t *testing.T, userID, productID uuid.UUID) map[string]string {
	t.Helper()

	metadata, err := orders.EncodeMetadata(orders.Confirmation{
		UserID:      userID,
		LicenseType: enums.LicenseTypeBasic,
		Currency:    enums.CurrencyUSD,
		AmountCents: 500,
		Items: []orders.ConfirmationItem{
			{ProductID: productID, Title: "UI Kit", Quantity: 1, UnitPriceCents: 500},
		},
	})
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	metadata[checkout.MetaKind] = checkout.KindOrder
	return metadata
}

func intentEvent(t *testing.T, eventType stripe.EventType, intentID string, metadata map[string]string, declineMsg string) *stripe.Event {
	t.Helper()

	payload := map[string]any{"id": intentID, "metadata": metadata}
	if declineMsg != "" {
		payload["last_payment_error"] = map[string]any{"message": declineMsg}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

type stubSettler struct {
	completed  int
	failed     int
	lastConf   orders.Confirmation
	lastReason string
	failErr    error
}

func (s *stubSettler) CompleteCheckout(ctx context.Context, conf orders.Confirmation) (*models.Order, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.completed++
	s.lastConf = conf
	return &models.Order{ID: uuid.New(), UserID: conf.UserID, Status: enums.OrderStatusCompleted}, nil
}

func (s *stubSettler) FailCheckout(ctx context.Context, conf orders.Confirmation, reason string) error {
	s.failed++
	s.lastConf = conf
	s.lastReason = reason
	return nil
}

type stubPasses struct {
	activated     string
	deactivated   string
	deactivatedTo enums.SubscriptionStatus
}

func (s *stubPasses) ActivateAccessPass(ctx context.Context, providerRef string) error {
	s.activated = providerRef
	return nil
}

func (s *stubPasses) DeactivateAccessPass(ctx context.Context, providerRef string, status enums.SubscriptionStatus) error {
	s.deactivated = providerRef
	s.deactivatedTo = status
	return nil
}

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *memoryGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *memoryGuard) Delete(ctx context.Context, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, eventID)
	return nil
}
