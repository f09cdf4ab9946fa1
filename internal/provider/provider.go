package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

var (
	// ErrEventIgnored marks processor events that carry no payment state
	// (customer lifecycle notifications and the like). Ingestion discards
	// them before any lookup.
	ErrEventIgnored = errors.New("event_ignored")
)

// SessionLine is one displayable line of a hosted checkout session.
type SessionLine struct {
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// PlanInput describes the recurring component of a subscription session.
type PlanInput struct {
	PlanID          string
	Name            string
	Price           decimal.Decimal
	DurationDays    int
	ProviderPlanRef string
}

// InitializeInput carries everything a processor needs to open a hosted
// session, including the correlation metadata that later webhooks echo back.
type InitializeInput struct {
	PaymentID string
	UserID    string
	Metadata  model.PaymentMetadata

	Amount   decimal.Decimal
	Currency string

	Lines []SessionLine
	Plan  *PlanInput

	SuccessURL string
	CancelURL  string
}

type Session struct {
	ProviderRef string
	ApprovalURL string // empty for processors without a redirect step

	// ProviderSubscriptionID is set when the processor assigned the
	// recurring-billing identity at session open. Processors that only
	// reveal it on later webhooks leave it empty.
	ProviderSubscriptionID string

	// AuthorizedAmount is non-zero for processors that place an
	// authorization hold when the session opens.
	AuthorizedAmount decimal.Decimal
}

type CaptureResult struct {
	Status        model.PaymentStatus
	TransactionID string
	ReceiptURL    string
}

// EventMetadata is the correlation data recovered from a webhook event.
// PaymentID is the primary key; OrderID/SubscriptionID are secondary.
type EventMetadata struct {
	Type           model.MetadataType
	PaymentID      string
	OrderID        string
	SubscriptionID string
	UserID         string

	ProviderSubscriptionID string
	// Renewal marks recurring-billing invoice events that open a new
	// billing cycle rather than settling the initial one.
	Renewal        bool
	ReceiptURL     string
	UnhandledEvent bool
}

// WebhookResult is the canonical shape every adapter reduces its processor's
// event taxonomy to.
type WebhookResult struct {
	ProviderRef string
	Status      model.PaymentStatus
	EventID     string
	EventType   string
	Metadata    EventMetadata
}

// Provider abstracts one payment processor. Implementations absorb the
// processor's event taxonomy and metadata-propagation quirks so callers see
// one status vocabulary.
type Provider interface {
	Kind() model.PaymentProvider

	InitializePayment(ctx context.Context, in InitializeInput) (*Session, error)

	// CapturePayment is idempotent: capturing an already-captured session
	// returns its terminal status without side effects.
	CapturePayment(ctx context.Context, providerRef string) (*CaptureResult, error)

	// VerifyWebhook authenticates the raw, unparsed request body. It fails
	// closed: any doubt is an error, never a pass.
	VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) error

	ParseWebhook(ctx context.Context, rawBody []byte) (*WebhookResult, error)
}

// StatusVerifier is the synchronous status pull used by the fallback verifier.
type StatusVerifier interface {
	VerifyPaymentStatus(ctx context.Context, providerRef string) (model.PaymentStatus, error)
}

// minorUnits converts a 2dp major-unit amount to the processor's integer
// minor unit (pounds to pence).
func minorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// Registry holds the configured providers keyed by kind.
type Registry struct {
	providers map[model.PaymentProvider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.PaymentProvider]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

func (r *Registry) Get(kind model.PaymentProvider) (Provider, bool) {
	p, ok := r.providers[kind]
	return p, ok
}
