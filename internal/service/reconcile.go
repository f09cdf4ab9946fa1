package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/dto"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/provider"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/repository"
)

const (
	WebhookProcessed = "processed"
	WebhookUnchanged = "unchanged"
	WebhookIgnored   = "ignored"
	WebhookNotFound  = "not_found"
)

type ReconciliationService interface {
	HandleWebhook(ctx context.Context, kind model.PaymentProvider, headers http.Header, rawBody []byte) (*dto.WebhookResponse, error)
	Capture(ctx context.Context, token string) (*dto.CaptureResponse, error)
	// VerifyPaymentStatus pulls the processor's current status for a
	// payment still PENDING locally and reconciles any difference.
	VerifyPaymentStatus(ctx context.Context, paymentID string) (*dto.CaptureResponse, error)
	PaymentStatus(ctx context.Context, paymentID string) (*dto.PaymentStatusResponse, error)
}

type reconciliationServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	registry *provider.Registry
	notifier Notifier
	mailer   Mailer

	paymentRepo      repository.PaymentRepository
	orderRepo        repository.OrderRepository
	productRepo      repository.ProductRepository
	cartRepo         repository.CartRepository
	subscriptionRepo repository.SubscriptionRepository
	planRepo         repository.PlanRepository
	webhookEventRepo repository.WebhookEventRepository
}

func NewReconciliationService(
	db *gorm.DB,
	log *zap.Logger,
	registry *provider.Registry,
	notifier Notifier,
	mailer Mailer,
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	cartRepo repository.CartRepository,
	subscriptionRepo repository.SubscriptionRepository,
	planRepo repository.PlanRepository,
	webhookEventRepo repository.WebhookEventRepository,
) ReconciliationService {
	return &reconciliationServiceImpl{
		db:               db,
		log:              log.Named("reconcile"),
		registry:         registry,
		notifier:         notifier,
		mailer:           mailer,
		paymentRepo:      paymentRepo,
		orderRepo:        orderRepo,
		productRepo:      productRepo,
		cartRepo:         cartRepo,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		webhookEventRepo: webhookEventRepo,
	}
}

// transitionInput is one reconciliation attempt against a payment row. An
// empty EventID means the attempt came from capture or the fallback verifier
// rather than a webhook delivery, so no event-audit row is involved.
type transitionInput struct {
	PaymentID  string
	Next       model.PaymentStatus
	EventID    string
	EventType  string
	ReceiptURL string
	Source     string
	// ProviderSubID backfills the subscription ledger's processor-side
	// identity when the event is the first to reveal it.
	ProviderSubID string
}

type transitionOutcome struct {
	Payment   *model.Payment
	Meta      model.PaymentMetadata
	Applied   bool
	Duplicate bool
	// ConfirmedOrderID is set when this attempt settled a store order.
	ConfirmedOrderID string
	OrderUserID      string
}

// transitionAllowed encodes the payment state machine. PENDING fans out to
// the three settlement outcomes; the only edge out of a settled state is
// PAID to REFUNDED.
func transitionAllowed(from, to model.PaymentStatus) bool {
	switch from {
	case model.PaymentPending:
		return to == model.PaymentPaid || to == model.PaymentFailed || to == model.PaymentCancelled
	case model.PaymentPaid:
		return to == model.PaymentRefunded
	}
	return false
}

func (s *reconciliationServiceImpl) HandleWebhook(ctx context.Context, kind model.PaymentProvider, headers http.Header, rawBody []byte) (*dto.WebhookResponse, error) {
	p, ok := s.registry.Get(kind)
	if !ok {
		return nil, apperr.NotFound("payment provider", string(kind))
	}

	if err := p.VerifyWebhook(ctx, headers, rawBody); err != nil {
		s.log.Warn("webhook verification failed",
			zap.String("provider", string(kind)),
			zap.Error(err),
		)
		return nil, err
	}

	result, err := p.ParseWebhook(ctx, rawBody)
	if err != nil {
		if errors.Is(err, provider.ErrEventIgnored) {
			return &dto.WebhookResponse{Result: WebhookIgnored}, nil
		}
		return nil, fmt.Errorf("parse %s webhook: %w", kind, err)
	}

	if result.Metadata.UnhandledEvent {
		s.log.Info("unhandled webhook event acknowledged",
			zap.String("provider", string(kind)),
			zap.String("event_type", result.EventType),
		)
		return &dto.WebhookResponse{Result: WebhookIgnored}, nil
	}

	if result.Metadata.Renewal {
		return s.handleRenewal(ctx, kind, result)
	}

	payment, err := s.resolvePayment(ctx, result)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// The processor retries failed deliveries; a payment this
			// engine never opened stays unknown forever, so it is
			// acknowledged rather than bounced.
			s.log.Warn("webhook for unknown payment acknowledged",
				zap.String("provider", string(kind)),
				zap.String("event_id", result.EventID),
				zap.String("provider_ref", result.ProviderRef),
			)
			return &dto.WebhookResponse{Result: WebhookNotFound}, nil
		}
		return nil, err
	}

	outcome, err := s.applyTransition(ctx, transitionInput{
		PaymentID:     payment.ID,
		Next:          result.Status,
		EventID:       result.EventID,
		EventType:     result.EventType,
		ReceiptURL:    result.Metadata.ReceiptURL,
		Source:        "webhook",
		ProviderSubID: result.Metadata.ProviderSubscriptionID,
	})
	if err != nil {
		return nil, err
	}

	s.notifyOutcome(ctx, outcome)

	resp := &dto.WebhookResponse{
		Result:    WebhookUnchanged,
		PaymentID: payment.ID,
		Status:    string(outcome.Payment.Status),
	}
	if outcome.Applied {
		resp.Result = WebhookProcessed
	}
	return resp, nil
}

// resolvePayment finds the local payment a webhook refers to. Correlation
// metadata is tried first, then the order join, then the processor session
// reference.
func (s *reconciliationServiceImpl) resolvePayment(ctx context.Context, result *provider.WebhookResult) (*model.Payment, error) {
	if result.Metadata.PaymentID != "" {
		return s.paymentRepo.FindByID(ctx, result.Metadata.PaymentID)
	}
	if result.Metadata.OrderID != "" {
		order, err := s.orderRepo.FindByID(ctx, result.Metadata.OrderID)
		if err != nil {
			return nil, err
		}
		if order.PaymentID == nil {
			return nil, apperr.NotFound("payment for order", result.Metadata.OrderID)
		}
		return s.paymentRepo.FindByID(ctx, *order.PaymentID)
	}
	if result.ProviderRef != "" {
		return s.paymentRepo.FindByProviderRef(ctx, result.ProviderRef)
	}
	return nil, apperr.NotFound("payment for webhook event", result.EventID)
}

// applyTransition is the single write path for payment state. Everything
// happens inside one transaction against a locked payment row: the duplicate
// check, the state-machine guard, the status write, and the side effects the
// new status triggers. Replays and out-of-order deliveries fall out as
// unchanged outcomes.
func (s *reconciliationServiceImpl) applyTransition(ctx context.Context, in transitionInput) (*transitionOutcome, error) {
	outcome := &transitionOutcome{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.EventID != "" {
			seen, err := s.webhookEventRepo.Exists(ctx, tx, in.EventID)
			if err != nil {
				return fmt.Errorf("check event audit: %w", err)
			}
			if seen {
				outcome.Duplicate = true
			}
		}

		payment, err := s.paymentRepo.FindByIDForUpdate(ctx, tx, in.PaymentID)
		if err != nil {
			return err
		}
		outcome.Payment = payment

		meta, err := model.MetadataFromJSON(payment.Metadata)
		if err != nil {
			return err
		}
		outcome.Meta = meta

		if outcome.Duplicate || payment.Status == in.Next || !transitionAllowed(payment.Status, in.Next) {
			if !outcome.Duplicate && !transitionAllowed(payment.Status, in.Next) && payment.Status != in.Next {
				s.log.Info("stale transition discarded",
					zap.String("payment_id", payment.ID),
					zap.String("current", string(payment.Status)),
					zap.String("proposed", string(in.Next)),
					zap.String("source", in.Source),
				)
			}
			return s.markEvent(ctx, tx, payment.Provider, in)
		}

		now := time.Now()
		payment.Status = in.Next
		if in.Next == model.PaymentPaid {
			payment.CapturedAmount = payment.Amount
		}
		meta.LastEventType = in.EventType
		meta.LastEventAt = &now
		if in.ReceiptURL != "" {
			meta.ReceiptURL = in.ReceiptURL
		}
		metaJSON, err := meta.JSON()
		if err != nil {
			return err
		}
		payment.Metadata = metaJSON

		if err := s.paymentRepo.Update(ctx, tx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		switch meta.Type {
		case model.MetadataStoreCheckout:
			if err := s.settleOrder(ctx, tx, meta, in.Next, outcome); err != nil {
				return err
			}
		case model.MetadataSubscription:
			if err := s.subscriptionRepo.UpdateStatus(ctx, tx, meta.SubscriptionID, in.Next); err != nil {
				return fmt.Errorf("update subscription status: %w", err)
			}
			// Stripe only reveals the recurring identity on webhooks, and
			// renewal events correlate by nothing else.
			if in.ProviderSubID != "" {
				if err := s.subscriptionRepo.SetProviderSubscriptionID(ctx, tx, meta.SubscriptionID, in.ProviderSubID); err != nil {
					return fmt.Errorf("record provider subscription id: %w", err)
				}
			}
		}

		outcome.Applied = true
		outcome.Meta = meta
		return s.markEvent(ctx, tx, payment.Provider, in)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *reconciliationServiceImpl) markEvent(ctx context.Context, tx *gorm.DB, kind model.PaymentProvider, in transitionInput) error {
	if in.EventID == "" || in.Source != "webhook" {
		return nil
	}
	// Duplicates already have an audit row; re-inserting would collide on
	// the primary key.
	seen, err := s.webhookEventRepo.Exists(ctx, tx, in.EventID)
	if err != nil || seen {
		return err
	}
	return s.webhookEventRepo.MarkProcessed(ctx, tx, kind, in.EventID, in.EventType)
}

// settleOrder runs the order-side effects of a payment transition inside the
// same transaction that moved the payment.
func (s *reconciliationServiceImpl) settleOrder(ctx context.Context, tx *gorm.DB, meta model.PaymentMetadata, next model.PaymentStatus, outcome *transitionOutcome) error {
	order, err := s.orderRepo.FindByIDTx(ctx, tx, meta.OrderID)
	if err != nil {
		return err
	}

	switch next {
	case model.PaymentPaid:
		items, err := s.orderRepo.GetOrderItems(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("load order items: %w", err)
		}
		productIDs := make([]string, len(items))
		for i, item := range items {
			productIDs[i] = item.ProductID
		}
		products, err := s.productRepo.FindManyTx(ctx, tx, productIDs)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		preOrder := make(map[string]bool, len(products))
		for _, p := range products {
			preOrder[p.ID] = p.IsPreOrder
		}

		for _, item := range items {
			// Pre-order stock is allocated at release.
			if preOrder[item.ProductID] {
				continue
			}
			ok, err := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock for %s: %w", item.ProductID, err)
			}
			if !ok {
				// Oversold between checkout and settlement. Abort so the
				// payment stays PENDING and the delivery is retried once
				// an operator restocks or refunds.
				return fmt.Errorf("insufficient stock for %s: %w", item.ProductID, apperr.ErrConflict)
			}
		}

		if err := s.cartRepo.DeleteItems(ctx, tx, order.UserID, productIDs); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		if order.IsPreOrder {
			if err := s.orderRepo.SetPreOrderStatus(ctx, tx, order.ID, model.PreOrderConfirmed); err != nil {
				return fmt.Errorf("confirm pre-order: %w", err)
			}
		}
		if _, err := s.orderRepo.AdvanceStatus(ctx, tx, order.ID,
			[]model.OrderStatus{model.OrderPending}, model.OrderProcessing, "payment settled"); err != nil {
			return fmt.Errorf("advance order status: %w", err)
		}
		outcome.ConfirmedOrderID = order.ID
		outcome.OrderUserID = order.UserID

	case model.PaymentFailed, model.PaymentCancelled:
		// The order never advanced, but the failed attempt still belongs in
		// its history.
		note := "payment failed"
		if next == model.PaymentCancelled {
			note = "payment cancelled"
		}
		if err := s.orderRepo.AppendStatusEvent(ctx, tx, order.ID, order.Status, note); err != nil {
			return fmt.Errorf("record payment failure: %w", err)
		}

	case model.PaymentRefunded:
		if _, err := s.orderRepo.AdvanceStatus(ctx, tx, order.ID,
			[]model.OrderStatus{model.OrderProcessing}, model.OrderPending, "payment refunded"); err != nil {
			return fmt.Errorf("revert order status: %w", err)
		}
	}
	return nil
}

// handleRenewal processes a recurring-billing event against the subscription
// ledger. The first successful invoice may race the checkout activation
// event, so a PENDING latest cycle is settled in place; once the latest cycle
// is PAID each further charge appends a new cycle row, PAID or FAILED, leaving
// history intact. A success after a FAILED latest cycle is the processor's
// dunning retry and settles that cycle in place.
func (s *reconciliationServiceImpl) handleRenewal(ctx context.Context, kind model.PaymentProvider, result *provider.WebhookResult) (*dto.WebhookResponse, error) {
	psid := result.Metadata.ProviderSubscriptionID
	if psid == "" {
		return &dto.WebhookResponse{Result: WebhookIgnored}, nil
	}

	var (
		applied   bool
		paymentID string
		status    = result.Status
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen, err := s.webhookEventRepo.Exists(ctx, tx, result.EventID)
		if err != nil {
			return fmt.Errorf("check event audit: %w", err)
		}
		if seen {
			return nil
		}

		latest, err := s.subscriptionRepo.LatestByProviderSubID(ctx, tx, psid)
		if err != nil {
			return err
		}

		switch {
		case latest.Status == model.PaymentPending:
			// Activation path: the first invoice settles cycle 1.
			if latest.PaymentID != nil {
				if _, err := s.applyTransitionTx(ctx, tx, transitionInput{
					PaymentID: *latest.PaymentID,
					Next:      status,
					EventType: result.EventType,
					Source:    "renewal",
				}); err != nil {
					return err
				}
				paymentID = *latest.PaymentID
			}
			if err := s.subscriptionRepo.UpdateStatus(ctx, tx, latest.ID, status); err != nil {
				return fmt.Errorf("update subscription status: %w", err)
			}
			applied = true

		case latest.Status == model.PaymentFailed && status == model.PaymentPaid:
			// Dunning recovery: the processor retried the failed cycle's
			// charge and it went through.
			if err := s.subscriptionRepo.UpdateStatus(ctx, tx, latest.ID, status); err != nil {
				return fmt.Errorf("update subscription status: %w", err)
			}
			applied = true

		case latest.Status == model.PaymentPaid:
			plan, err := s.planRepo.FindByID(ctx, latest.PlanID)
			if err != nil {
				return err
			}
			cycle := latest.BillingCycle + 1
			// Cycle rows after the first have no local payment: the
			// processor bills without a checkout session on this side.
			next := &model.Subscription{
				ID:                     fmt.Sprintf("%s-c%d", psid, cycle),
				UserID:                 latest.UserID,
				PlanID:                 latest.PlanID,
				Status:                 status,
				StartDate:              latest.EndDate,
				EndDate:                latest.EndDate.AddDate(0, 0, plan.DurationDays),
				BillingCycle:           cycle,
				ProviderSubscriptionID: psid,
			}
			if err := s.subscriptionRepo.Create(ctx, tx, next); err != nil {
				return fmt.Errorf("append billing cycle: %w", err)
			}
			applied = true

		default:
			s.log.Info("renewal event for settled subscription discarded",
				zap.String("provider_subscription_id", psid),
				zap.String("latest_status", string(latest.Status)),
			)
		}

		return s.webhookEventRepo.MarkProcessed(ctx, tx, kind, result.EventID, result.EventType)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn("renewal for unknown subscription acknowledged",
				zap.String("provider", string(kind)),
				zap.String("provider_subscription_id", psid),
			)
			return &dto.WebhookResponse{Result: WebhookNotFound}, nil
		}
		return nil, err
	}

	resp := &dto.WebhookResponse{Result: WebhookUnchanged, PaymentID: paymentID, Status: string(status)}
	if applied {
		resp.Result = WebhookProcessed
	}
	return resp, nil
}

// applyTransitionTx is applyTransition's body for callers already inside a
// transaction.
func (s *reconciliationServiceImpl) applyTransitionTx(ctx context.Context, tx *gorm.DB, in transitionInput) (*transitionOutcome, error) {
	outcome := &transitionOutcome{}

	payment, err := s.paymentRepo.FindByIDForUpdate(ctx, tx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	outcome.Payment = payment

	meta, err := model.MetadataFromJSON(payment.Metadata)
	if err != nil {
		return nil, err
	}
	outcome.Meta = meta

	if payment.Status == in.Next || !transitionAllowed(payment.Status, in.Next) {
		return outcome, nil
	}

	now := time.Now()
	payment.Status = in.Next
	if in.Next == model.PaymentPaid {
		payment.CapturedAmount = payment.Amount
	}
	meta.LastEventType = in.EventType
	meta.LastEventAt = &now
	metaJSON, err := meta.JSON()
	if err != nil {
		return nil, err
	}
	payment.Metadata = metaJSON

	if err := s.paymentRepo.Update(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	outcome.Applied = true
	return outcome, nil
}

// Capture settles a hosted session after the customer returns approved. The
// result feeds the same transition path webhooks use, so a webhook that
// already landed makes this a no-op.
func (s *reconciliationServiceImpl) Capture(ctx context.Context, token string) (*dto.CaptureResponse, error) {
	payment, err := s.paymentRepo.FindByProviderRef(ctx, token)
	if err != nil {
		return nil, err
	}

	p, ok := s.registry.Get(payment.Provider)
	if !ok {
		return nil, apperr.NotFound("payment provider", string(payment.Provider))
	}

	capture, err := p.CapturePayment(ctx, token)
	if err != nil {
		return nil, err
	}

	outcome, err := s.applyTransition(ctx, transitionInput{
		PaymentID:  payment.ID,
		Next:       capture.Status,
		EventType:  "capture",
		ReceiptURL: capture.ReceiptURL,
		Source:     "capture",
	})
	if err != nil {
		return nil, err
	}

	s.notifyOutcome(ctx, outcome)

	return &dto.CaptureResponse{
		PaymentID:      payment.ID,
		Status:         outcome.Payment.Status,
		OrderID:        outcome.Meta.OrderID,
		SubscriptionID: outcome.Meta.SubscriptionID,
	}, nil
}

func (s *reconciliationServiceImpl) VerifyPaymentStatus(ctx context.Context, paymentID string) (*dto.CaptureResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	meta, err := model.MetadataFromJSON(payment.Metadata)
	if err != nil {
		return nil, err
	}

	resp := &dto.CaptureResponse{
		PaymentID:      payment.ID,
		Status:         payment.Status,
		OrderID:        meta.OrderID,
		SubscriptionID: meta.SubscriptionID,
	}

	// Settled payments are left alone; the pull exists to unstick rows a
	// lost webhook left PENDING.
	if payment.Status.Terminal() {
		return resp, nil
	}

	p, ok := s.registry.Get(payment.Provider)
	if !ok {
		return nil, apperr.NotFound("payment provider", string(payment.Provider))
	}
	verifier, ok := p.(provider.StatusVerifier)
	if !ok {
		return resp, nil
	}

	remote, err := verifier.VerifyPaymentStatus(ctx, payment.ProviderRef)
	if err != nil {
		return nil, err
	}
	if remote == payment.Status {
		return resp, nil
	}

	outcome, err := s.applyTransition(ctx, transitionInput{
		PaymentID: payment.ID,
		Next:      remote,
		EventType: "status_verification",
		Source:    "verify",
	})
	if err != nil {
		return nil, err
	}

	s.notifyOutcome(ctx, outcome)

	resp.Status = outcome.Payment.Status
	return resp, nil
}

func (s *reconciliationServiceImpl) PaymentStatus(ctx context.Context, paymentID string) (*dto.PaymentStatusResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	meta, err := model.MetadataFromJSON(payment.Metadata)
	if err != nil {
		return nil, err
	}

	resp := &dto.PaymentStatusResponse{
		PaymentID: payment.ID,
		UserID:    meta.UserID,
		Provider:  payment.Provider,
		Status:    payment.Status,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	}

	switch meta.Type {
	case model.MetadataStoreCheckout:
		order, err := s.orderRepo.FindByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		history, err := s.orderRepo.StatusHistory(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		view := &dto.OrderView{
			OrderID:        order.ID,
			Status:         order.Status,
			TotalAmount:    order.TotalAmount,
			IsPreOrder:     order.IsPreOrder,
			PreOrderStatus: order.PreOrderStatus,
		}
		for _, e := range history {
			view.StatusHistory = append(view.StatusHistory, dto.OrderStatusEventView{
				Status:    e.Status,
				Note:      e.Note,
				Timestamp: e.CreatedAt,
			})
		}
		resp.Order = view

	case model.MetadataSubscription:
		sub, err := s.subscriptionRepo.FindByID(ctx, meta.SubscriptionID)
		if err != nil {
			return nil, err
		}
		resp.Subscription = &dto.SubscriptionView{
			SubscriptionID:         sub.ID,
			PlanID:                 sub.PlanID,
			Status:                 sub.Status,
			BillingCycle:           sub.BillingCycle,
			StartDate:              sub.StartDate,
			EndDate:                sub.EndDate,
			ProviderSubscriptionID: sub.ProviderSubscriptionID,
		}
	}

	return resp, nil
}

// notifyOutcome publishes the domain events a committed transition warrants.
// Delivery failures are logged, never surfaced: the transition has already
// committed and the processor must not see an error for it.
func (s *reconciliationServiceImpl) notifyOutcome(ctx context.Context, outcome *transitionOutcome) {
	if outcome == nil || !outcome.Applied {
		return
	}

	status := outcome.Payment.Status
	switch status {
	case model.PaymentPaid, model.PaymentFailed, model.PaymentCancelled, model.PaymentRefunded:
	default:
		return
	}

	event := PaymentStatusEvent{
		PaymentID:  outcome.Payment.ID,
		Status:     status,
		Reason:     outcome.Meta.LastEventType,
		OccurredAt: time.Now(),
	}
	if err := s.notifier.NotifyPaymentStatus(ctx, event); err != nil {
		s.log.Error("publish payment status event",
			zap.String("payment_id", outcome.Payment.ID),
			zap.Error(err),
		)
	}
	if err := s.mailer.EmailOnPaymentStatus(ctx, outcome.Meta.UserID, outcome.Payment.ID, status, outcome.Meta.LastEventType); err != nil {
		s.log.Error("send payment status email",
			zap.String("payment_id", outcome.Payment.ID),
			zap.Error(err),
		)
	}

	if outcome.ConfirmedOrderID != "" {
		if err := s.notifier.NotifyOrderConfirmed(ctx, OrderConfirmedEvent{
			OrderID: outcome.ConfirmedOrderID,
			UserID:  outcome.OrderUserID,
		}); err != nil {
			s.log.Error("publish order confirmed event",
				zap.String("order_id", outcome.ConfirmedOrderID),
				zap.Error(err),
			)
		}
	}
}
