package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/service"
)

// KafkaNotifier publishes payment and order domain events to a single topic,
// keyed so all events for one payment land on one partition in order.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log.Named("kafka"),
	}
}

type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (n *KafkaNotifier) publish(ctx context.Context, kind, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}
	msg, err := json.Marshal(envelope{Kind: kind, Payload: body})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msg,
	}); err != nil {
		return fmt.Errorf("write %s event: %w", kind, err)
	}
	return nil
}

func (n *KafkaNotifier) NotifyPaymentStatus(ctx context.Context, event service.PaymentStatusEvent) error {
	return n.publish(ctx, "payment.status", event.PaymentID, event)
}

func (n *KafkaNotifier) NotifyOrderConfirmed(ctx context.Context, event service.OrderConfirmedEvent) error {
	return n.publish(ctx, "order.confirmed", event.OrderID, event)
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
