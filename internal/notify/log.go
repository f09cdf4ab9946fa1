package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/service"
)

// LogNotifier is the Notifier used when no broker is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) NotifyPaymentStatus(ctx context.Context, event service.PaymentStatusEvent) error {
	n.log.Info("payment status event",
		zap.String("payment_id", event.PaymentID),
		zap.String("status", string(event.Status)),
		zap.String("reason", event.Reason),
	)
	return nil
}

func (n *LogNotifier) NotifyOrderConfirmed(ctx context.Context, event service.OrderConfirmedEvent) error {
	n.log.Info("order confirmed event",
		zap.String("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
	)
	return nil
}

// LogMailer records outbound mail intent; an SMTP or API mailer can replace
// it behind the same port.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log.Named("mailer")}
}

func (m *LogMailer) EmailOnPaymentStatus(ctx context.Context, userID, paymentID string, status model.PaymentStatus, reason string) error {
	m.log.Info("payment status email queued",
		zap.String("user_id", userID),
		zap.String("payment_id", paymentID),
		zap.String("status", string(status)),
		zap.String("reason", reason),
	)
	return nil
}
