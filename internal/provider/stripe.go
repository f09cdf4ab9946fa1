package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v74"
	stripeclient "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/config"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

const (
	metaKeyPaymentID      = "paymentId"
	metaKeyOrderID        = "orderId"
	metaKeySubscriptionID = "subscriptionId"
	metaKeyUserID         = "userId"
	metaKeyType           = "type"
)

type stripeProvider struct {
	api           *stripeclient.API
	webhookSecret string
}

func NewStripeProvider(cfg *config.Stripe) Provider {
	api := &stripeclient.API{}
	api.Init(cfg.SecretKey, nil)

	return &stripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (p *stripeProvider) Kind() model.PaymentProvider {
	return model.ProviderStripe
}

func correlationMetadata(in InitializeInput) map[string]string {
	meta := map[string]string{
		metaKeyPaymentID: in.PaymentID,
		metaKeyUserID:    in.UserID,
		metaKeyType:      string(in.Metadata.Type),
	}
	if in.Metadata.OrderID != "" {
		meta[metaKeyOrderID] = in.Metadata.OrderID
	}
	if in.Metadata.SubscriptionID != "" {
		meta[metaKeySubscriptionID] = in.Metadata.SubscriptionID
	}
	return meta
}

func (p *stripeProvider) InitializePayment(ctx context.Context, in InitializeInput) (*Session, error) {
	meta := correlationMetadata(in)
	currency := strings.ToLower(in.Currency)

	// Stripe substitutes the placeholder so the return handler can capture
	// by session reference.
	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(in.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.PaymentID),
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	if in.Plan != nil {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(minorUnits(in.Plan.Price)),
				Recurring:  recurringParams(in.Plan.DurationDays),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.Plan.Name),
				},
			},
		}}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		items := make([]*stripe.CheckoutSessionLineItemParams, len(in.Lines))
		for i, line := range in.Lines {
			items[i] = &stripe.CheckoutSessionLineItemParams{
				Quantity: stripe.Int64(int64(line.Quantity)),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(minorUnits(line.UnitPrice)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(line.Name),
					},
				},
			}
		}
		params.LineItems = items
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: meta}
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, apperr.Provider("stripe create checkout session", err)
	}

	return &Session{ProviderRef: sess.ID, ApprovalURL: sess.URL}, nil
}

func recurringParams(durationDays int) *stripe.CheckoutSessionLineItemPriceDataRecurringParams {
	switch durationDays {
	case 365, 366:
		return &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalYear)),
		}
	case 28, 29, 30, 31:
		return &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	default:
		return &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval:      stripe.String(string(stripe.PriceRecurringIntervalDay)),
			IntervalCount: stripe.Int64(int64(durationDays)),
		}
	}
}

// CapturePayment re-fetches the session: Stripe Checkout collects funds on
// completion, so "capture" reduces to reporting the session's settled state.
// Re-invoking it on a completed session is therefore naturally idempotent.
func (p *stripeProvider) CapturePayment(ctx context.Context, providerRef string) (*CaptureResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := p.api.CheckoutSessions.Get(providerRef, params)
	if err != nil {
		return nil, apperr.Provider("stripe get checkout session", err)
	}

	res := &CaptureResult{Status: sessionStatus(sess)}
	if sess.PaymentIntent != nil {
		res.TransactionID = sess.PaymentIntent.ID
	} else if sess.Subscription != nil {
		res.TransactionID = sess.Subscription.ID
	}
	return res, nil
}

func sessionStatus(sess *stripe.CheckoutSession) model.PaymentStatus {
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return model.PaymentPaid
	}
	if sess.Status == stripe.CheckoutSessionStatusExpired {
		return model.PaymentCancelled
	}
	return model.PaymentPending
}

func (p *stripeProvider) VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) error {
	if len(rawBody) == 0 {
		return fmt.Errorf("empty body: %w", apperr.ErrWebhookVerification)
	}
	sig := headers.Get("Stripe-Signature")
	if sig == "" {
		return fmt.Errorf("missing Stripe-Signature header: %w", apperr.ErrWebhookVerification)
	}
	if _, err := webhook.ConstructEvent(rawBody, sig, p.webhookSecret); err != nil {
		return fmt.Errorf("stripe signature: %v: %w", err, apperr.ErrWebhookVerification)
	}
	return nil
}

func (p *stripeProvider) ParseWebhook(ctx context.Context, rawBody []byte) (*WebhookResult, error) {
	var event stripe.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}

	res := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		res.ProviderRef = sess.ID
		res.Status = sessionStatus(&sess)
		res.Metadata = metadataFromMap(sess.Metadata)
		if sess.Subscription != nil {
			res.Metadata.ProviderSubscriptionID = sess.Subscription.ID
		}

	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		res.ProviderRef = pi.ID
		res.Metadata = metadataFromMap(pi.Metadata)
		if event.Type == "payment_intent.succeeded" {
			res.Status = model.PaymentPaid
		} else {
			res.Status = model.PaymentFailed
		}

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		res.ProviderRef = ch.ID
		res.Status = model.PaymentRefunded
		res.Metadata = metadataFromMap(ch.Metadata)
		res.Metadata.ReceiptURL = ch.ReceiptURL
		// Charge events do not inherit the session's metadata; recover the
		// correlation keys from the parent intent.
		if res.Metadata.PaymentID == "" && ch.PaymentIntent != nil {
			meta, err := p.FetchPaymentIntentMetadata(ctx, ch.PaymentIntent.ID)
			if err != nil {
				return nil, err
			}
			res.Metadata = mergeMetadata(res.Metadata, meta)
		}

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		res.ProviderRef = inv.ID
		res.Metadata.Type = model.MetadataSubscription
		if inv.Subscription != nil {
			res.Metadata.ProviderSubscriptionID = inv.Subscription.ID
		}
		res.Metadata.ReceiptURL = inv.HostedInvoiceURL
		// Failed cycle invoices route through the renewal ledger the same
		// way successful ones do; otherwise the invoice id resolves nothing.
		res.Metadata.Renewal = inv.BillingReason == stripe.InvoiceBillingReasonSubscriptionCycle
		if event.Type == "invoice.payment_succeeded" {
			res.Status = model.PaymentPaid
		} else {
			res.Status = model.PaymentFailed
		}

	case "customer.created", "customer.updated", "customer.deleted",
		"payment_intent.created", "charge.succeeded", "payment_method.attached":
		return nil, ErrEventIgnored

	default:
		// Unknown future event types degrade gracefully instead of crashing
		// ingestion.
		res.Status = model.PaymentPending
		res.Metadata.UnhandledEvent = true
	}

	return res, nil
}

func (p *stripeProvider) FetchPaymentIntentMetadata(ctx context.Context, intentID string) (map[string]string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, apperr.Provider("stripe get payment intent", err)
	}
	return pi.Metadata, nil
}

func (p *stripeProvider) VerifyPaymentStatus(ctx context.Context, providerRef string) (model.PaymentStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := p.api.CheckoutSessions.Get(providerRef, params)
	if err != nil {
		return "", apperr.Provider("stripe get checkout session", err)
	}
	return sessionStatus(sess), nil
}

func metadataFromMap(meta map[string]string) EventMetadata {
	if meta == nil {
		return EventMetadata{}
	}
	return EventMetadata{
		Type:           model.MetadataType(meta[metaKeyType]),
		PaymentID:      meta[metaKeyPaymentID],
		OrderID:        meta[metaKeyOrderID],
		SubscriptionID: meta[metaKeySubscriptionID],
		UserID:         meta[metaKeyUserID],
	}
}

func mergeMetadata(base EventMetadata, meta map[string]string) EventMetadata {
	fetched := metadataFromMap(meta)
	if base.Type == "" {
		base.Type = fetched.Type
	}
	if base.PaymentID == "" {
		base.PaymentID = fetched.PaymentID
	}
	if base.OrderID == "" {
		base.OrderID = fetched.OrderID
	}
	if base.SubscriptionID == "" {
		base.SubscriptionID = fetched.SubscriptionID
	}
	if base.UserID == "" {
		base.UserID = fetched.UserID
	}
	return base
}
