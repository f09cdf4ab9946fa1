package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/dto"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/pricing"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/provider"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/repository"
)

type CheckoutService interface {
	CheckoutCart(ctx context.Context, userID string, req *dto.CheckoutCartRequest) (*dto.CheckoutCartResponse, error)
	CheckoutSubscription(ctx context.Context, userID, planID string) (*dto.CheckoutSubscriptionResponse, error)
}

// CheckoutConfig is the pricing-and-redirect surface the orchestrator needs.
type CheckoutConfig struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	GlobalDiscount *pricing.GlobalDiscount
}

type checkoutServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	active   provider.Provider
	cfg      CheckoutConfig
	shipping ShippingCalculator

	cartRepo         repository.CartRepository
	productRepo      repository.ProductRepository
	addressRepo      repository.AddressRepository
	orderRepo        repository.OrderRepository
	paymentRepo      repository.PaymentRepository
	planRepo         repository.PlanRepository
	subscriptionRepo repository.SubscriptionRepository
}

func NewCheckoutService(
	db *gorm.DB,
	log *zap.Logger,
	active provider.Provider,
	cfg CheckoutConfig,
	shipping ShippingCalculator,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	addressRepo repository.AddressRepository,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	planRepo repository.PlanRepository,
	subscriptionRepo repository.SubscriptionRepository,
) CheckoutService {
	return &checkoutServiceImpl{
		db:               db,
		log:              log.Named("checkout"),
		active:           active,
		cfg:              cfg,
		shipping:         shipping,
		cartRepo:         cartRepo,
		productRepo:      productRepo,
		addressRepo:      addressRepo,
		orderRepo:        orderRepo,
		paymentRepo:      paymentRepo,
		planRepo:         planRepo,
		subscriptionRepo: subscriptionRepo,
	}
}

func (s *checkoutServiceImpl) CheckoutCart(ctx context.Context, userID string, req *dto.CheckoutCartRequest) (*dto.CheckoutCartResponse, error) {
	cartItems, err := s.cartRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(cartItems) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	lines, err := s.pricingLines(ctx, cartItems)
	if err != nil {
		return nil, err
	}

	summary, err := pricing.Summarize(time.Now(), lines, s.cfg.GlobalDiscount)
	if err != nil {
		return nil, err
	}

	address, err := s.resolveAddress(ctx, userID, &req.Delivery)
	if err != nil {
		return nil, err
	}

	shippingCost, err := s.shipping.Cost(ctx, address, summary.Lines)
	if err != nil {
		return nil, fmt.Errorf("compute shipping: %w", err)
	}
	total := summary.Subtotal.Add(shippingCost).Round(2)

	paymentID := uuid.NewString()
	orderID := uuid.NewString()

	meta := model.PaymentMetadata{
		Type:    model.MetadataStoreCheckout,
		OrderID: orderID,
		UserID:  userID,
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	sessionLines := make([]provider.SessionLine, 0, len(summary.Lines)+1)
	for _, l := range summary.Lines {
		unit := l.Total.Div(decimal.NewFromInt32(l.Quantity)).Round(2)
		sessionLines = append(sessionLines, provider.SessionLine{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: unit,
		})
	}
	if shippingCost.IsPositive() {
		sessionLines = append(sessionLines, provider.SessionLine{
			Name:      "Shipping",
			Quantity:  1,
			UnitPrice: shippingCost,
		})
	}

	// The provider session is opened before anything is persisted: a
	// provider failure leaves no orphaned order/payment pair, and a local
	// failure afterwards only strands an unfunded session at the provider.
	sess, err := s.active.InitializePayment(ctx, provider.InitializeInput{
		PaymentID:  paymentID,
		UserID:     userID,
		Metadata:   meta,
		Amount:     total,
		Currency:   s.cfg.Currency,
		Lines:      sessionLines,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	metaJSON, err := meta.JSON()
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.Create(ctx, tx, &model.Payment{
			ID:                paymentID,
			Provider:          s.active.Kind(),
			ProviderRef:       sess.ProviderRef,
			Status:            model.PaymentPending,
			Amount:            total,
			AuthorizedAmount:  sess.AuthorizedAmount,
			Currency:          s.cfg.Currency,
			IsPreOrderPayment: summary.HasPreOrder,
			Metadata:          metaJSON,
		}); err != nil {
			return fmt.Errorf("store payment: %w", err)
		}

		order := &model.Order{
			ID:                orderID,
			UserID:            userID,
			Status:            model.OrderPending,
			PaymentID:         &paymentID,
			TotalAmount:       total,
			IsPreOrder:        summary.HasPreOrder,
			DeliveryAddressID: address.ID,
		}
		if summary.HasPreOrder {
			order.PreOrderStatus = model.PreOrderPlaced
		}
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}

		orderItems := make([]*model.OrderItem, len(summary.Lines))
		for i, l := range summary.Lines {
			orderItems[i] = &model.OrderItem{
				OrderID:   orderID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     l.BaseUnitPrice,
			}
		}
		if err := s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
			return fmt.Errorf("store order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cart checkout session opened",
		zap.String("payment_id", paymentID),
		zap.String("order_id", orderID),
		zap.String("provider_ref", sess.ProviderRef),
		zap.String("amount", total.StringFixed(2)),
	)

	return &dto.CheckoutCartResponse{
		PaymentID:   paymentID,
		OrderID:     orderID,
		ApprovalURL: sess.ApprovalURL,
		Amount:      total,
		Currency:    s.cfg.Currency,
	}, nil
}

func (s *checkoutServiceImpl) pricingLines(ctx context.Context, cartItems []*model.CartItem) ([]pricing.Line, error) {
	productIDs := make([]string, len(cartItems))
	quantities := make(map[string]int32, len(cartItems))
	for i, item := range cartItems {
		productIDs[i] = item.ProductID
		quantities[item.ProductID] = item.Quantity
	}

	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if len(products) != len(cartItems) {
		return nil, apperr.Validation("some cart products no longer exist")
	}

	lines := make([]pricing.Line, len(products))
	for i, p := range products {
		lines[i] = pricing.Line{
			ProductID:        p.ID,
			Name:             p.Name,
			Quantity:         quantities[p.ID],
			UnitPrice:        p.Price,
			DiscountPercent:  p.DiscountPercent,
			DiscountStartsAt: p.DiscountStartsAt,
			DiscountEndsAt:   p.DiscountEndsAt,
			Stock:            p.Stock,
			Published:        p.Published,
			IsPreOrder:       p.IsPreOrder,
		}
	}
	return lines, nil
}

func (s *checkoutServiceImpl) resolveAddress(ctx context.Context, userID string, in *dto.DeliveryAddressInput) (*model.Address, error) {
	if in.AddressID != "" {
		return s.addressRepo.FindByIDForUser(ctx, in.AddressID, userID)
	}

	var reasons []string
	if strings.TrimSpace(in.Line1) == "" {
		reasons = append(reasons, "delivery address line1 is required")
	}
	if strings.TrimSpace(in.City) == "" {
		reasons = append(reasons, "delivery city is required")
	}
	if strings.TrimSpace(in.Postcode) == "" {
		reasons = append(reasons, "delivery postcode is required")
	}
	if strings.TrimSpace(in.Country) == "" {
		reasons = append(reasons, "delivery country is required")
	}
	if len(reasons) > 0 {
		return nil, apperr.ValidationReasons(reasons)
	}

	address := &model.Address{
		ID:       uuid.NewString(),
		UserID:   userID,
		Line1:    in.Line1,
		Line2:    in.Line2,
		City:     in.City,
		Postcode: in.Postcode,
		Country:  in.Country,
	}
	if err := s.addressRepo.Create(ctx, address); err != nil {
		return nil, fmt.Errorf("store address: %w", err)
	}
	return address, nil
}

func (s *checkoutServiceImpl) CheckoutSubscription(ctx context.Context, userID, planID string) (*dto.CheckoutSubscriptionResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperr.Validation("plan %s is not active", planID)
	}

	now := time.Now()
	endDate := now.AddDate(0, 0, plan.DurationDays)

	paymentID := uuid.NewString()

	// The subscription's final identity is the provider session reference;
	// a temporary correlation id keys the session until it is known.
	meta := model.PaymentMetadata{
		Type:           model.MetadataSubscription,
		SubscriptionID: uuid.NewString(),
		UserID:         userID,
	}

	sess, err := s.active.InitializePayment(ctx, provider.InitializeInput{
		PaymentID: paymentID,
		UserID:    userID,
		Metadata:  meta,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		Plan: &provider.PlanInput{
			PlanID:          plan.ID,
			Name:            plan.Name,
			Price:           plan.Price,
			DurationDays:    plan.DurationDays,
			ProviderPlanRef: plan.ProviderPlanRef,
		},
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	meta.SubscriptionID = sess.ProviderRef
	metaJSON, err := meta.JSON()
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.Create(ctx, tx, &model.Payment{
			ID:               paymentID,
			Provider:         s.active.Kind(),
			ProviderRef:      sess.ProviderRef,
			Status:           model.PaymentPending,
			Amount:           plan.Price,
			AuthorizedAmount: sess.AuthorizedAmount,
			Currency:         plan.Currency,
			Metadata:         metaJSON,
		}); err != nil {
			return fmt.Errorf("store payment: %w", err)
		}

		if err := s.subscriptionRepo.Create(ctx, tx, &model.Subscription{
			ID:     sess.ProviderRef,
			UserID: userID,
			PlanID: plan.ID,
			Status: model.PaymentPending,
			// Empty until the processor reveals it; webhooks backfill it
			// so renewal events can correlate.
			ProviderSubscriptionID: sess.ProviderSubscriptionID,
			StartDate:              now,
			EndDate:                endDate,
			BillingCycle:           1,
			PaymentID:              &paymentID,
		}); err != nil {
			return fmt.Errorf("store subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription checkout session opened",
		zap.String("payment_id", paymentID),
		zap.String("subscription_id", sess.ProviderRef),
		zap.String("plan_id", plan.ID),
	)

	return &dto.CheckoutSubscriptionResponse{
		PaymentID:      paymentID,
		SubscriptionID: sess.ProviderRef,
		ApprovalURL:    sess.ApprovalURL,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		PlanName:       plan.Name,
	}, nil
}
