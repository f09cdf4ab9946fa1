package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/provider"
)

func paidWebhookResult() *provider.WebhookResult {
	return &provider.WebhookResult{
		ProviderRef: testSessionID,
		Status:      model.PaymentPaid,
		EventID:     "evt-001",
		EventType:   "checkout.session.completed",
		Metadata: provider.EventMetadata{
			Type:      model.MetadataStoreCheckout,
			PaymentID: testPaymentID,
			OrderID:   testOrderID,
			UserID:    testUserID,
		},
	}
}

func TestReconciliation_HandleWebhook_StorePaid(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a pending store payment When paid webhook arrives Then payment settles with side effects", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: paidWebhookResult()})
		env.seedStorePayment(t, 10)

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}

		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}
		if got := env.payment(t, testPaymentID).Status; got != model.PaymentPaid {
			t.Errorf("expected payment PAID, got %s", got)
		}
		if got := env.productStock(t, "prod-001"); got != 8 {
			t.Errorf("expected stock 8, got %d", got)
		}

		items, err := env.cartRepo.GetByUser(ctx, testUserID)
		if err != nil {
			t.Fatalf("load cart: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected cart cleared, got %d items", len(items))
		}

		order, err := env.orderRepo.FindByID(ctx, testOrderID)
		if err != nil {
			t.Fatalf("load order: %v", err)
		}
		if order.Status != model.OrderProcessing {
			t.Errorf("expected order PROCESSING, got %s", order.Status)
		}

		if len(env.notifier.statusEvents) != 1 || env.notifier.statusEvents[0].Status != model.PaymentPaid {
			t.Errorf("expected one PAID status event, got %v", env.notifier.statusEvents)
		}
		if len(env.notifier.confirmedOrders) != 1 || env.notifier.confirmedOrders[0].OrderID != testOrderID {
			t.Errorf("expected order confirmed event, got %v", env.notifier.confirmedOrders)
		}
		if env.mailer.sent != 1 {
			t.Errorf("expected one email, got %d", env.mailer.sent)
		}
	})

	t.Run("Given a processed event When the same delivery replays Then nothing changes again", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: paidWebhookResult()})
		env.seedStorePayment(t, 10)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}

		if resp.Result != WebhookUnchanged {
			t.Errorf("expected unchanged, got %s", resp.Result)
		}
		if got := env.productStock(t, "prod-001"); got != 8 {
			t.Errorf("stock decremented twice: expected 8, got %d", got)
		}
		if len(env.notifier.statusEvents) != 1 {
			t.Errorf("expected one status event, got %d", len(env.notifier.statusEvents))
		}
	})

	t.Run("Given a settled payment When a stale failure event arrives Then the transition is discarded", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: paidWebhookResult()})
		env.seedStorePayment(t, 10)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}

		stale := paidWebhookResult()
		stale.EventID = "evt-002"
		stale.EventType = "payment_intent.payment_failed"
		stale.Status = model.PaymentFailed
		env.provider.parseResult = stale

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("stale delivery failed: %v", err)
		}

		if resp.Result != WebhookUnchanged {
			t.Errorf("expected unchanged, got %s", resp.Result)
		}
		if got := env.payment(t, testPaymentID).Status; got != model.PaymentPaid {
			t.Errorf("expected payment still PAID, got %s", got)
		}
	})

	t.Run("Given a paid payment When a refund event arrives Then it moves to REFUNDED", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: paidWebhookResult()})
		env.seedStorePayment(t, 10)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("paid delivery failed: %v", err)
		}

		refund := paidWebhookResult()
		refund.EventID = "evt-003"
		refund.EventType = "charge.refunded"
		refund.Status = model.PaymentRefunded
		env.provider.parseResult = refund

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("refund delivery failed: %v", err)
		}

		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}
		if got := env.payment(t, testPaymentID).Status; got != model.PaymentRefunded {
			t.Errorf("expected REFUNDED, got %s", got)
		}

		order, err := env.orderRepo.FindByID(ctx, testOrderID)
		if err != nil {
			t.Fatalf("load order: %v", err)
		}
		if order.Status != model.OrderPending {
			t.Errorf("expected order back to PENDING, got %s", order.Status)
		}
	})

	t.Run("Given a pending store payment When the charge fails Then the failure lands in the order history", func(t *testing.T) {
		failed := paidWebhookResult()
		failed.EventID = "evt-004"
		failed.EventType = "payment_intent.payment_failed"
		failed.Status = model.PaymentFailed
		env := newReconcileEnv(t, &fakeProvider{parseResult: failed})
		env.seedStorePayment(t, 10)

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}

		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}
		if got := env.payment(t, testPaymentID).Status; got != model.PaymentFailed {
			t.Errorf("expected payment FAILED, got %s", got)
		}

		order, err := env.orderRepo.FindByID(ctx, testOrderID)
		if err != nil {
			t.Fatalf("load order: %v", err)
		}
		if order.Status != model.OrderPending {
			t.Errorf("expected order still PENDING, got %s", order.Status)
		}
		if got := env.productStock(t, "prod-001"); got != 10 {
			t.Errorf("expected stock untouched, got %d", got)
		}

		history, err := env.orderRepo.StatusHistory(ctx, testOrderID)
		if err != nil {
			t.Fatalf("load history: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 history events, got %d", len(history))
		}
		last := history[len(history)-1]
		if last.Note != "payment failed" || last.Status != model.OrderPending {
			t.Errorf("unexpected history event %+v", last)
		}
	})

	t.Run("Given insufficient stock at settlement When paid webhook arrives Then the transition aborts", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: paidWebhookResult()})
		env.seedStorePayment(t, 1)

		_, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected conflict error, got %v", err)
		}

		if got := env.payment(t, testPaymentID).Status; got != model.PaymentPending {
			t.Errorf("expected payment still PENDING, got %s", got)
		}
		if got := env.productStock(t, "prod-001"); got != 1 {
			t.Errorf("expected stock untouched, got %d", got)
		}
	})
}

func TestReconciliation_HandleWebhook_Correlation(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an event carrying only orderId When handled Then the payment resolves through the order", func(t *testing.T) {
		result := paidWebhookResult()
		result.Metadata.PaymentID = ""
		env := newReconcileEnv(t, &fakeProvider{parseResult: result})
		env.seedStorePayment(t, 10)

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}

		if resp.Result != WebhookProcessed || resp.PaymentID != testPaymentID {
			t.Errorf("expected processed for %s, got %+v", testPaymentID, resp)
		}
	})

	t.Run("Given an event with only the session reference When handled Then the payment resolves by provider ref", func(t *testing.T) {
		result := paidWebhookResult()
		result.Metadata = provider.EventMetadata{}
		env := newReconcileEnv(t, &fakeProvider{parseResult: result})
		env.seedStorePayment(t, 10)

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}
		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}
	})

	t.Run("Given an event for a payment this engine never opened When handled Then it is acknowledged as not found", func(t *testing.T) {
		result := paidWebhookResult()
		result.Metadata.PaymentID = "pay-unknown"
		result.Metadata.OrderID = ""
		env := newReconcileEnv(t, &fakeProvider{parseResult: result})

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}
		if resp.Result != WebhookNotFound {
			t.Errorf("expected not_found, got %s", resp.Result)
		}
	})

	t.Run("Given a failed signature When handled Then the error surfaces", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{
			verifyErr: apperr.ErrWebhookVerification,
		})

		_, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if !errors.Is(err, apperr.ErrWebhookVerification) {
			t.Fatalf("expected verification error, got %v", err)
		}
	})

	t.Run("Given an event type that carries no payment state When handled Then it is ignored", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseErr: provider.ErrEventIgnored})

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}
		if resp.Result != WebhookIgnored {
			t.Errorf("expected ignored, got %s", resp.Result)
		}
	})
}

const testProviderSubID = "I-PROVIDER-SUB"

func (e *reconcileEnv) seedSubscription(t *testing.T, status model.PaymentStatus) {
	t.Helper()
	ctx := context.Background()

	if err := e.planRepo.Seed(ctx, []model.Plan{{
		ID:           "plan-monthly",
		Name:         "Monthly Membership",
		Price:        decimal.RequireFromString("12.99"),
		Currency:     "GBP",
		DurationDays: 30,
		Active:       true,
	}}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	meta, err := model.PaymentMetadata{
		Type:           model.MetadataSubscription,
		SubscriptionID: "sub-001",
		UserID:         testUserID,
	}.JSON()
	if err != nil {
		t.Fatalf("seed metadata: %v", err)
	}

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	paymentID := testPaymentID
	if err := e.db.Create(&model.Payment{
		ID:          testPaymentID,
		Provider:    e.provider.Kind(),
		ProviderRef: "sub-001",
		Status:      status,
		Amount:      decimal.RequireFromString("12.99"),
		Currency:    "GBP",
		Metadata:    meta,
	}).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	if err := e.db.Create(&model.Subscription{
		ID:                     "sub-001",
		UserID:                 testUserID,
		PlanID:                 "plan-monthly",
		Status:                 status,
		StartDate:              start,
		EndDate:                start.AddDate(0, 0, 30),
		BillingCycle:           1,
		ProviderSubscriptionID: testProviderSubID,
		PaymentID:              &paymentID,
	}).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func renewalWebhookResult(status model.PaymentStatus) *provider.WebhookResult {
	return &provider.WebhookResult{
		ProviderRef: testProviderSubID,
		Status:      status,
		EventID:     "evt-renewal-001",
		EventType:   "invoice.payment_succeeded",
		Metadata: provider.EventMetadata{
			Type:                   model.MetadataSubscription,
			ProviderSubscriptionID: testProviderSubID,
			Renewal:                true,
		},
	}
}

func TestReconciliation_HandleWebhook_Renewal(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a paid cycle When a renewal invoice settles Then a new cycle row is appended", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: renewalWebhookResult(model.PaymentPaid)})
		env.seedSubscription(t, model.PaymentPaid)

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}
		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}

		next, err := env.subscriptionRepo.LatestByProviderSubID(ctx, env.db, testProviderSubID)
		if err != nil {
			t.Fatalf("load latest cycle: %v", err)
		}
		if next.BillingCycle != 2 {
			t.Fatalf("expected billing cycle 2, got %d", next.BillingCycle)
		}
		if next.PaymentID != nil {
			t.Error("expected renewal cycle to carry no local payment")
		}

		first, err := env.subscriptionRepo.FindByID(ctx, "sub-001")
		if err != nil {
			t.Fatalf("load first cycle: %v", err)
		}
		if first.Status != model.PaymentPaid || first.BillingCycle != 1 {
			t.Errorf("expected first cycle unchanged, got %+v", first)
		}
		if !next.StartDate.Equal(first.EndDate) {
			t.Errorf("expected next cycle to start at %v, got %v", first.EndDate, next.StartDate)
		}
	})

	t.Run("Given a pending subscription When the first invoice settles Then cycle one activates in place", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: renewalWebhookResult(model.PaymentPaid)})
		env.seedSubscription(t, model.PaymentPending)

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}
		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}

		latest, err := env.subscriptionRepo.LatestByProviderSubID(ctx, env.db, testProviderSubID)
		if err != nil {
			t.Fatalf("load latest cycle: %v", err)
		}
		if latest.BillingCycle != 1 || latest.Status != model.PaymentPaid {
			t.Errorf("expected cycle 1 PAID, got %+v", latest)
		}
		if got := env.payment(t, testPaymentID).Status; got != model.PaymentPaid {
			t.Errorf("expected payment PAID, got %s", got)
		}
	})

	t.Run("Given a paid cycle When a renewal charge fails Then a FAILED cycle row is recorded", func(t *testing.T) {
		failed := renewalWebhookResult(model.PaymentFailed)
		failed.EventType = "invoice.payment_failed"
		env := newReconcileEnv(t, &fakeProvider{parseResult: failed})
		env.seedSubscription(t, model.PaymentPaid)

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}
		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}

		latest, err := env.subscriptionRepo.LatestByProviderSubID(ctx, env.db, testProviderSubID)
		if err != nil {
			t.Fatalf("load latest cycle: %v", err)
		}
		if latest.BillingCycle != 2 || latest.Status != model.PaymentFailed {
			t.Errorf("expected cycle 2 FAILED, got %+v", latest)
		}

		first, err := env.subscriptionRepo.FindByID(ctx, "sub-001")
		if err != nil {
			t.Fatalf("load first cycle: %v", err)
		}
		if first.Status != model.PaymentPaid {
			t.Errorf("expected first cycle untouched, got %s", first.Status)
		}
	})

	t.Run("Given a failed cycle When the processor's retry succeeds Then that cycle settles in place", func(t *testing.T) {
		failed := renewalWebhookResult(model.PaymentFailed)
		failed.EventType = "invoice.payment_failed"
		env := newReconcileEnv(t, &fakeProvider{parseResult: failed})
		env.seedSubscription(t, model.PaymentPaid)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("failed delivery failed: %v", err)
		}

		retry := renewalWebhookResult(model.PaymentPaid)
		retry.EventID = "evt-renewal-002"
		env.provider.parseResult = retry

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("retry delivery failed: %v", err)
		}
		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}

		latest, err := env.subscriptionRepo.LatestByProviderSubID(ctx, env.db, testProviderSubID)
		if err != nil {
			t.Fatalf("load latest cycle: %v", err)
		}
		if latest.BillingCycle != 2 || latest.Status != model.PaymentPaid {
			t.Errorf("expected cycle 2 settled in place, got %+v", latest)
		}
	})

	t.Run("Given a recurring identity only webhooks reveal Then activation backfills it and renewals correlate", func(t *testing.T) {
		activation := &provider.WebhookResult{
			ProviderRef: "sub-001",
			Status:      model.PaymentPaid,
			EventID:     "evt-activate-001",
			EventType:   "checkout.session.completed",
			Metadata: provider.EventMetadata{
				Type:                   model.MetadataSubscription,
				PaymentID:              testPaymentID,
				SubscriptionID:         "sub-001",
				ProviderSubscriptionID: "sub_stripe_001",
			},
		}
		env := newReconcileEnv(t, &fakeProvider{parseResult: activation})
		env.seedSubscription(t, model.PaymentPending)
		if err := env.db.Model(&model.Subscription{}).
			Where("id = ?", "sub-001").
			Update("provider_subscription_id", "").Error; err != nil {
			t.Fatalf("clear provider subscription id: %v", err)
		}

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("activation delivery failed: %v", err)
		}

		sub, err := env.subscriptionRepo.FindByID(ctx, "sub-001")
		if err != nil {
			t.Fatalf("load subscription: %v", err)
		}
		if sub.ProviderSubscriptionID != "sub_stripe_001" {
			t.Fatalf("expected backfilled provider subscription id, got %q", sub.ProviderSubscriptionID)
		}
		if sub.Status != model.PaymentPaid {
			t.Errorf("expected subscription PAID, got %s", sub.Status)
		}

		renewal := renewalWebhookResult(model.PaymentPaid)
		renewal.ProviderRef = "sub_stripe_001"
		renewal.Metadata.ProviderSubscriptionID = "sub_stripe_001"
		env.provider.parseResult = renewal

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("renewal delivery failed: %v", err)
		}
		if resp.Result != WebhookProcessed {
			t.Errorf("expected processed, got %s", resp.Result)
		}

		latest, err := env.subscriptionRepo.LatestByProviderSubID(ctx, env.db, "sub_stripe_001")
		if err != nil {
			t.Fatalf("load latest cycle: %v", err)
		}
		if latest.BillingCycle != 2 {
			t.Errorf("expected billing cycle 2, got %d", latest.BillingCycle)
		}
	})

	t.Run("Given a processed renewal When the same event replays Then no extra cycle appears", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: renewalWebhookResult(model.PaymentPaid)})
		env.seedSubscription(t, model.PaymentPaid)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}

		if resp.Result != WebhookUnchanged {
			t.Errorf("expected unchanged, got %s", resp.Result)
		}
		latest, err := env.subscriptionRepo.LatestByProviderSubID(ctx, env.db, testProviderSubID)
		if err != nil {
			t.Fatalf("load latest cycle: %v", err)
		}
		if latest.BillingCycle != 2 {
			t.Errorf("expected billing cycle 2 after replay, got %d", latest.BillingCycle)
		}
	})

	t.Run("Given a renewal for an unknown subscription When handled Then it is acknowledged as not found", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: renewalWebhookResult(model.PaymentPaid)})

		resp, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`))
		if err != nil {
			t.Fatalf("HandleWebhook failed: %v", err)
		}
		if resp.Result != WebhookNotFound {
			t.Errorf("expected not_found, got %s", resp.Result)
		}
	})
}

func TestReconciliation_Capture(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a pending payment When capture reports PAID Then the payment settles", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{
			captureResult: &provider.CaptureResult{Status: model.PaymentPaid, TransactionID: "txn-001"},
		})
		env.seedStorePayment(t, 10)

		resp, err := env.svc.Capture(ctx, testSessionID)
		if err != nil {
			t.Fatalf("Capture failed: %v", err)
		}

		if resp.Status != model.PaymentPaid || resp.PaymentID != testPaymentID {
			t.Errorf("unexpected capture response %+v", resp)
		}
		if resp.OrderID != testOrderID {
			t.Errorf("expected order id %s, got %s", testOrderID, resp.OrderID)
		}
		if got := env.productStock(t, "prod-001"); got != 8 {
			t.Errorf("expected stock 8, got %d", got)
		}
	})

	t.Run("Given a payment a webhook already settled When capture repeats Then nothing changes", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{
			parseResult:   paidWebhookResult(),
			captureResult: &provider.CaptureResult{Status: model.PaymentPaid},
		})
		env.seedStorePayment(t, 10)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("webhook delivery failed: %v", err)
		}
		resp, err := env.svc.Capture(ctx, testSessionID)
		if err != nil {
			t.Fatalf("Capture failed: %v", err)
		}

		if resp.Status != model.PaymentPaid {
			t.Errorf("expected PAID, got %s", resp.Status)
		}
		if got := env.productStock(t, "prod-001"); got != 8 {
			t.Errorf("stock decremented twice: expected 8, got %d", got)
		}
		if len(env.notifier.statusEvents) != 1 {
			t.Errorf("expected one status event, got %d", len(env.notifier.statusEvents))
		}
	})

	t.Run("Given an unknown token When captured Then not found surfaces", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{})

		_, err := env.svc.Capture(ctx, "cs_unknown")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestReconciliation_VerifyPaymentStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a pending payment the processor settled When verified Then the difference reconciles", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{remoteStatus: model.PaymentPaid})
		env.seedStorePayment(t, 10)

		resp, err := env.svc.VerifyPaymentStatus(ctx, testPaymentID)
		if err != nil {
			t.Fatalf("VerifyPaymentStatus failed: %v", err)
		}

		if resp.Status != model.PaymentPaid {
			t.Errorf("expected PAID, got %s", resp.Status)
		}
		if env.provider.remoteCalls != 1 {
			t.Errorf("expected one remote call, got %d", env.provider.remoteCalls)
		}
		if got := env.productStock(t, "prod-001"); got != 8 {
			t.Errorf("expected stock 8, got %d", got)
		}
	})

	t.Run("Given a settled payment When verified Then the processor is not consulted", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{
			parseResult:  paidWebhookResult(),
			remoteStatus: model.PaymentFailed,
		})
		env.seedStorePayment(t, 10)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("webhook delivery failed: %v", err)
		}
		resp, err := env.svc.VerifyPaymentStatus(ctx, testPaymentID)
		if err != nil {
			t.Fatalf("VerifyPaymentStatus failed: %v", err)
		}

		if resp.Status != model.PaymentPaid {
			t.Errorf("expected PAID, got %s", resp.Status)
		}
		if env.provider.remoteCalls != 0 {
			t.Errorf("expected no remote calls, got %d", env.provider.remoteCalls)
		}
	})

	t.Run("Given a pending payment still pending remotely When verified Then it stays PENDING", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{remoteStatus: model.PaymentPending})
		env.seedStorePayment(t, 10)

		resp, err := env.svc.VerifyPaymentStatus(ctx, testPaymentID)
		if err != nil {
			t.Fatalf("VerifyPaymentStatus failed: %v", err)
		}
		if resp.Status != model.PaymentPending {
			t.Errorf("expected PENDING, got %s", resp.Status)
		}
	})
}

func TestReconciliation_PaymentStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a settled store payment When status is fetched Then the order view carries its history", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{parseResult: paidWebhookResult()})
		env.seedStorePayment(t, 10)

		if _, err := env.svc.HandleWebhook(ctx, model.ProviderStripe, http.Header{}, []byte(`{}`)); err != nil {
			t.Fatalf("webhook delivery failed: %v", err)
		}

		resp, err := env.svc.PaymentStatus(ctx, testPaymentID)
		if err != nil {
			t.Fatalf("PaymentStatus failed: %v", err)
		}

		if resp.Status != model.PaymentPaid {
			t.Errorf("expected PAID, got %s", resp.Status)
		}
		if resp.Order == nil {
			t.Fatal("expected order view")
		}
		if resp.Order.Status != model.OrderProcessing {
			t.Errorf("expected order PROCESSING, got %s", resp.Order.Status)
		}
		// created + payment settled
		if len(resp.Order.StatusHistory) != 2 {
			t.Errorf("expected 2 history events, got %d", len(resp.Order.StatusHistory))
		}
	})

	t.Run("Given a subscription payment When status is fetched Then the subscription view is attached", func(t *testing.T) {
		env := newReconcileEnv(t, &fakeProvider{})
		env.seedSubscription(t, model.PaymentPaid)

		resp, err := env.svc.PaymentStatus(ctx, testPaymentID)
		if err != nil {
			t.Fatalf("PaymentStatus failed: %v", err)
		}
		if resp.Subscription == nil {
			t.Fatal("expected subscription view")
		}
		if resp.Subscription.PlanID != "plan-monthly" || resp.Subscription.BillingCycle != 1 {
			t.Errorf("unexpected subscription view %+v", resp.Subscription)
		}
	})
}
