package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type DeliveryAddressInput struct {
	AddressID string `json:"address_id"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

type CheckoutCartRequest struct {
	Delivery DeliveryAddressInput `json:"delivery"`
}

type CheckoutCartResponse struct {
	PaymentID   string          `json:"payment_id"`
	OrderID     string          `json:"order_id"`
	ApprovalURL string          `json:"approval_url,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

type CheckoutSubscriptionRequest struct {
	PlanID string `json:"planId"`
}

type CheckoutSubscriptionResponse struct {
	PaymentID      string          `json:"payment_id"`
	SubscriptionID string          `json:"subscription_id"`
	ApprovalURL    string          `json:"approval_url,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	PlanName       string          `json:"plan_name"`
}

type CaptureRequest struct {
	Token string `json:"token"`
}

type CaptureResponse struct {
	PaymentID      string              `json:"payment_id"`
	Status         model.PaymentStatus `json:"status"`
	OrderID        string              `json:"order_id,omitempty"`
	SubscriptionID string              `json:"subscription_id,omitempty"`
}

// WebhookResponse tells the processor what happened to its delivery.
type WebhookResponse struct {
	Result    string `json:"result"` // processed, unchanged, ignored, not_found
	PaymentID string `json:"payment_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type OrderStatusEventView struct {
	Status    model.OrderStatus `json:"status"`
	Note      string            `json:"note,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type OrderView struct {
	OrderID        string                 `json:"order_id"`
	Status         model.OrderStatus      `json:"status"`
	TotalAmount    decimal.Decimal        `json:"total_amount"`
	IsPreOrder     bool                   `json:"is_pre_order"`
	PreOrderStatus model.PreOrderStatus   `json:"pre_order_status,omitempty"`
	StatusHistory  []OrderStatusEventView `json:"status_history,omitempty"`
}

type SubscriptionView struct {
	SubscriptionID         string              `json:"subscription_id"`
	PlanID                 string              `json:"plan_id"`
	Status                 model.PaymentStatus `json:"status"`
	BillingCycle           int                 `json:"billing_cycle"`
	StartDate              time.Time           `json:"start_date"`
	EndDate                time.Time           `json:"end_date"`
	ProviderSubscriptionID string              `json:"provider_subscription_id,omitempty"`
}

type PaymentStatusResponse struct {
	PaymentID    string                `json:"payment_id"`
	UserID       string                `json:"user_id"`
	Provider     model.PaymentProvider `json:"provider"`
	Status       model.PaymentStatus   `json:"status"`
	Amount       decimal.Decimal       `json:"amount"`
	Currency     string                `json:"currency"`
	Order        *OrderView            `json:"order,omitempty"`
	Subscription *SubscriptionView     `json:"subscription,omitempty"`
}
