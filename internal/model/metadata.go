package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type MetadataType string

const (
	MetadataStoreCheckout MetadataType = "store_checkout"
	MetadataSubscription  MetadataType = "subscription"
)

// PaymentMetadata is the closed union stored on Payment.Metadata,
// discriminated by Type. It carries only processor-side bookkeeping that is
// not derivable from relational joins.
type PaymentMetadata struct {
	Type MetadataType `json:"type"`

	// store_checkout
	OrderID string `json:"orderId,omitempty"`

	// subscription
	SubscriptionID string `json:"subscriptionId,omitempty"`

	UserID        string     `json:"userId,omitempty"`
	ReceiptURL    string     `json:"receiptUrl,omitempty"`
	LastEventType string     `json:"lastEventType,omitempty"`
	LastEventAt   *time.Time `json:"lastEventAt,omitempty"`
}

func (m PaymentMetadata) Validate() error {
	switch m.Type {
	case MetadataStoreCheckout:
		if m.OrderID == "" {
			return fmt.Errorf("store_checkout metadata requires orderId")
		}
		if m.SubscriptionID != "" {
			return fmt.Errorf("store_checkout metadata must not carry subscriptionId")
		}
	case MetadataSubscription:
		if m.SubscriptionID == "" {
			return fmt.Errorf("subscription metadata requires subscriptionId")
		}
		if m.OrderID != "" {
			return fmt.Errorf("subscription metadata must not carry orderId")
		}
	default:
		return fmt.Errorf("unknown metadata type %q", m.Type)
	}
	return nil
}

func (m PaymentMetadata) JSON() (datatypes.JSON, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal payment metadata: %w", err)
	}
	return datatypes.JSON(b), nil
}

func MetadataFromJSON(raw datatypes.JSON) (PaymentMetadata, error) {
	var m PaymentMetadata
	if len(raw) == 0 {
		return m, fmt.Errorf("payment has no metadata")
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("unmarshal payment metadata: %w", err)
	}
	return m, nil
}
