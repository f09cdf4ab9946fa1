package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/pricing"
)

// PaymentStatusEvent is published after a reconciliation transaction commits.
type PaymentStatusEvent struct {
	PaymentID  string              `json:"payment_id"`
	Status     model.PaymentStatus `json:"status"`
	Reason     string              `json:"reason"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// OrderConfirmedEvent feeds downstream fulfillment once a store order's
// payment settles.
type OrderConfirmedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// Notifier is the outbound domain-event port. Implementations must be safe
// for concurrent use; delivery is best effort and never blocks a committed
// transition from being reported to the caller.
type Notifier interface {
	NotifyPaymentStatus(ctx context.Context, event PaymentStatusEvent) error
	NotifyOrderConfirmed(ctx context.Context, event OrderConfirmedEvent) error
}

// Mailer is the email collaborator's narrow surface.
type Mailer interface {
	EmailOnPaymentStatus(ctx context.Context, userID, paymentID string, status model.PaymentStatus, reason string) error
}

// ShippingCalculator prices delivery for a summarized cart.
type ShippingCalculator interface {
	Cost(ctx context.Context, address *model.Address, lines []pricing.SummaryLine) (decimal.Decimal, error)
}

// FlatRateShipping charges one configured rate per delivery.
type FlatRateShipping struct {
	Rate decimal.Decimal
}

func (s FlatRateShipping) Cost(ctx context.Context, address *model.Address, lines []pricing.SummaryLine) (decimal.Decimal, error) {
	return s.Rate.Round(2), nil
}
