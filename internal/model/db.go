package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Terminal reports whether no further transition may leave s,
// except the explicit PAID -> REFUNDED edge.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

type PaymentProvider string

const (
	ProviderStripe    PaymentProvider = "STRIPE"
	ProviderPaypal    PaymentProvider = "PAYPAL"
	ProviderBraintree PaymentProvider = "BRAINTREE"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderDispatched OrderStatus = "DISPATCHED"
	OrderDelivered  OrderStatus = "DELIVERED"
)

type PreOrderStatus string

const (
	PreOrderPlaced    PreOrderStatus = "PLACED"
	PreOrderConfirmed PreOrderStatus = "CONFIRMED"
	PreOrderFulfilled PreOrderStatus = "FULFILLED"
)

type Product struct {
	ID          string          `gorm:"primaryKey;size:64;not null"`
	Name        string          `gorm:"size:255;not null"`
	Description string          `gorm:"size:1024"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency    string          `gorm:"size:8;not null"`
	Stock       int32           `gorm:"not null"`
	Published   bool            `gorm:"not null;default:true"`
	// Stock for pre-order products is decremented on release, not on payment.
	IsPreOrder bool `gorm:"not null;default:false"`

	DiscountPercent  decimal.Decimal `gorm:"type:decimal(5,2)"`
	DiscountStartsAt *time.Time
	DiscountEndsAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Plan struct {
	ID           string          `gorm:"primaryKey;size:64;not null"`
	Name         string          `gorm:"size:255;not null"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency     string          `gorm:"size:8;not null"`
	DurationDays int             `gorm:"not null"`
	Active       bool            `gorm:"not null;default:true"`
	// Processor-side plan reference for providers that bill recurring
	// charges themselves (e.g. a PayPal billing plan id).
	ProviderPlanRef string `gorm:"size:128"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	UserID    string `gorm:"primaryKey;size:64;not null"`
	ProductID string `gorm:"primaryKey;size:64;not null"`
	Quantity  int32  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Address struct {
	ID       string `gorm:"primaryKey;size:64;not null"`
	UserID   string `gorm:"size:64;index;not null"`
	Line1    string `gorm:"size:255;not null"`
	Line2    string `gorm:"size:255"`
	City     string `gorm:"size:128;not null"`
	Postcode string `gorm:"size:32;not null"`
	Country  string `gorm:"size:64;not null"`

	CreatedAt time.Time
}

type Payment struct {
	ID          string          `gorm:"primaryKey;size:64;not null"`
	Provider    PaymentProvider `gorm:"size:32;index;not null"`
	ProviderRef string          `gorm:"size:128;uniqueIndex"` // processor session/intent id
	Status      PaymentStatus   `gorm:"size:32;index;not null"`

	Amount           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CapturedAmount   decimal.Decimal `gorm:"type:decimal(10,2)"`
	AuthorizedAmount decimal.Decimal `gorm:"type:decimal(10,2)"`
	Currency         string          `gorm:"size:8;not null"`

	IsPreOrderPayment bool           `gorm:"not null;default:false"`
	Metadata          datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID     string      `gorm:"primaryKey;size:64;not null"`
	UserID string      `gorm:"size:64;index;not null"`
	Status OrderStatus `gorm:"size:32;index;not null"`

	PaymentID   *string         `gorm:"size:64;index"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	IsPreOrder     bool           `gorm:"not null;default:false"`
	PreOrderStatus PreOrderStatus `gorm:"size:32"`

	DeliveryAddressID string `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderStatusEvent is the append-only status history of an order.
type OrderStatusEvent struct {
	ID        uint        `gorm:"primaryKey"`
	OrderID   string      `gorm:"size:64;index;not null"`
	Status    OrderStatus `gorm:"size:32;not null"`
	Note      string      `gorm:"size:255"`
	CreatedAt time.Time
}

type OrderItem struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"size:64;index;not null"`
	ProductID string `gorm:"size:64;index;not null"`
	Quantity  int32  `gorm:"not null"`
	// Unit price at time of purchase, decoupled from the live catalog price.
	Price decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	CreatedAt time.Time
}

// Subscription rows form an append-only ledger: one row per billing cycle.
type Subscription struct {
	ID     string        `gorm:"primaryKey;size:128;not null"` // provider session id for cycle 1
	UserID string        `gorm:"size:64;index;not null"`
	PlanID string        `gorm:"size:64;index;not null"`
	Status PaymentStatus `gorm:"size:32;index;not null"`

	StartDate    time.Time `gorm:"not null"`
	EndDate      time.Time `gorm:"not null"`
	BillingCycle int       `gorm:"not null;default:1"`

	ProviderSubscriptionID string  `gorm:"size:128;index"`
	PaymentID              *string `gorm:"size:64;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type WebhookEvent struct {
	EventID     string          `gorm:"primaryKey;size:128;not null"`
	Provider    PaymentProvider `gorm:"size:32;index"`
	EventType   string          `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
