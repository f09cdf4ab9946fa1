package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/braintree-go/braintree-go"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/config"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type braintreeProvider struct {
	gateway *braintree.Braintree
}

func NewBraintreeProvider(cfg *config.Braintree) Provider {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	return &braintreeProvider{
		gateway: braintree.New(
			env,
			cfg.MerchantID,
			cfg.PublicKey,
			cfg.PrivateKey,
		),
	}
}

func (p *braintreeProvider) Kind() model.PaymentProvider {
	return model.ProviderBraintree
}

// InitializePayment works against the user's vaulted Braintree customer; there
// is no hosted redirect, so ApprovalURL stays empty. One-off sales are
// authorized without settling and the session is the authorized transaction
// itself. Recurring plans attach the customer's vaulted payment method to a
// Braintree billing plan and the session is the subscription.
func (p *braintreeProvider) InitializePayment(ctx context.Context, in InitializeInput) (*Session, error) {
	if in.Plan != nil {
		return p.createSubscription(ctx, in)
	}

	btAmount := braintree.NewDecimal(minorUnits(in.Amount), 2)

	tx, err := p.gateway.Transaction().Create(ctx, &braintree.TransactionRequest{
		Type:       "sale",
		Amount:     btAmount,
		CustomerID: in.UserID,
		// OrderId is echoed on transaction webhooks; it is the only
		// caller-supplied field Braintree propagates, so it carries the
		// primary correlation key.
		OrderId: in.PaymentID,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: false,
		},
	})
	if err != nil {
		return nil, apperr.Provider("braintree create transaction", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined {
		return nil, apperr.Provider("braintree create transaction",
			fmt.Errorf("declined by processor: %s", tx.ProcessorResponseText))
	}

	return &Session{ProviderRef: tx.Id, AuthorizedAmount: in.Amount}, nil
}

func (p *braintreeProvider) createSubscription(ctx context.Context, in InitializeInput) (*Session, error) {
	if in.Plan.ProviderPlanRef == "" {
		return nil, apperr.Provider("braintree create subscription",
			fmt.Errorf("plan %s has no braintree billing plan reference", in.Plan.PlanID))
	}

	customer, err := p.gateway.Customer().Find(ctx, in.UserID)
	if err != nil {
		return nil, apperr.Provider("braintree find customer", err)
	}
	method := customer.DefaultPaymentMethod()
	if method == nil {
		return nil, apperr.Provider("braintree create subscription",
			fmt.Errorf("customer %s has no vaulted payment method", in.UserID))
	}

	sub, err := p.gateway.Subscription().Create(ctx, &braintree.SubscriptionRequest{
		PaymentMethodToken: method.GetToken(),
		PlanId:             in.Plan.ProviderPlanRef,
	})
	if err != nil {
		return nil, apperr.Provider("braintree create subscription", err)
	}

	return &Session{ProviderRef: sub.Id, ProviderSubscriptionID: sub.Id}, nil
}

func (p *braintreeProvider) CapturePayment(ctx context.Context, providerRef string) (*CaptureResult, error) {
	tx, err := p.gateway.Transaction().Find(ctx, providerRef)
	if err != nil {
		return nil, apperr.Provider("braintree find transaction", err)
	}

	// Only an authorized transaction needs settling; anything else already
	// reached a settled or terminal state and is reported as-is.
	if tx.Status == braintree.TransactionStatusAuthorized {
		tx, err = p.gateway.Transaction().SubmitForSettlement(ctx, providerRef, tx.Amount)
		if err != nil {
			return nil, apperr.Provider("braintree submit for settlement", err)
		}
	}

	return &CaptureResult{
		Status:        braintreeStatus(tx.Status),
		TransactionID: tx.Id,
	}, nil
}

func braintreeStatus(status braintree.TransactionStatus) model.PaymentStatus {
	switch status {
	case braintree.TransactionStatusSettled,
		braintree.TransactionStatusSettling,
		braintree.TransactionStatusSubmittedForSettlement:
		return model.PaymentPaid
	case braintree.TransactionStatusProcessorDeclined,
		braintree.TransactionStatusSettlementDeclined,
		braintree.TransactionStatusGatewayRejected,
		braintree.TransactionStatusFailed:
		return model.PaymentFailed
	case braintree.TransactionStatusVoided,
		braintree.TransactionStatusAuthorizationExpired:
		return model.PaymentCancelled
	default: // authorizing, authorized, settlement_pending
		return model.PaymentPending
	}
}

// parseNotification decodes the bt_signature/bt_payload form body and lets
// the SDK verify the signature while parsing.
func (p *braintreeProvider) parseNotification(rawBody []byte) (*braintree.WebhookNotification, error) {
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, fmt.Errorf("parse webhook form body: %v: %w", err, apperr.ErrWebhookVerification)
	}
	signature := values.Get("bt_signature")
	payload := values.Get("bt_payload")
	if signature == "" || payload == "" {
		return nil, fmt.Errorf("missing bt_signature or bt_payload: %w", apperr.ErrWebhookVerification)
	}

	wn, err := p.gateway.WebhookNotification().Parse(signature, payload)
	if err != nil {
		return nil, fmt.Errorf("braintree webhook parse: %v: %w", err, apperr.ErrWebhookVerification)
	}
	return wn, nil
}

func (p *braintreeProvider) VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) error {
	if len(rawBody) == 0 {
		return fmt.Errorf("empty body: %w", apperr.ErrWebhookVerification)
	}
	_, err := p.parseNotification(rawBody)
	return err
}

func (p *braintreeProvider) ParseWebhook(ctx context.Context, rawBody []byte) (*WebhookResult, error) {
	wn, err := p.parseNotification(rawBody)
	if err != nil {
		return nil, err
	}

	res := &WebhookResult{
		EventType: string(wn.Kind),
		EventID:   fmt.Sprintf("%s-%d", wn.Kind, wn.Timestamp.Unix()),
	}

	switch wn.Kind {
	case braintree.TransactionSettledWebhook:
		tx := wn.Subject.Transaction
		if tx == nil {
			return nil, fmt.Errorf("transaction_settled notification without transaction subject")
		}
		res.ProviderRef = tx.Id
		res.EventID = fmt.Sprintf("%s-%s", wn.Kind, tx.Id)
		res.Status = model.PaymentPaid
		res.Metadata = EventMetadata{Type: model.MetadataStoreCheckout, PaymentID: tx.OrderId}

	case braintree.TransactionSettlementDeclinedWebhook:
		tx := wn.Subject.Transaction
		if tx == nil {
			return nil, fmt.Errorf("settlement_declined notification without transaction subject")
		}
		res.ProviderRef = tx.Id
		res.EventID = fmt.Sprintf("%s-%s", wn.Kind, tx.Id)
		res.Status = model.PaymentFailed
		res.Metadata = EventMetadata{Type: model.MetadataStoreCheckout, PaymentID: tx.OrderId}

	case braintree.SubscriptionChargedSuccessfullyWebhook:
		sub := wn.Subject.Subscription
		if sub == nil {
			return nil, fmt.Errorf("subscription notification without subscription subject")
		}
		res.ProviderRef = sub.Id
		res.Status = model.PaymentPaid
		res.Metadata = EventMetadata{
			Type:                   model.MetadataSubscription,
			ProviderSubscriptionID: sub.Id,
			Renewal:                true,
		}

	case braintree.SubscriptionChargedUnsuccessfullyWebhook:
		sub := wn.Subject.Subscription
		if sub == nil {
			return nil, fmt.Errorf("subscription notification without subscription subject")
		}
		res.ProviderRef = sub.Id
		res.Status = model.PaymentFailed
		// Failed recurring charges route through the renewal ledger too.
		res.Metadata = EventMetadata{
			Type:                   model.MetadataSubscription,
			ProviderSubscriptionID: sub.Id,
			Renewal:                true,
		}

	case braintree.SubscriptionCanceledWebhook, braintree.SubscriptionExpiredWebhook:
		sub := wn.Subject.Subscription
		if sub == nil {
			return nil, fmt.Errorf("subscription notification without subscription subject")
		}
		res.ProviderRef = sub.Id
		res.Status = model.PaymentCancelled
		res.Metadata = EventMetadata{Type: model.MetadataSubscription, ProviderSubscriptionID: sub.Id}

	case braintree.CheckWebhook:
		return nil, ErrEventIgnored

	default:
		res.Status = model.PaymentPending
		res.Metadata.UnhandledEvent = true
	}

	return res, nil
}

func (p *braintreeProvider) VerifyPaymentStatus(ctx context.Context, providerRef string) (model.PaymentStatus, error) {
	tx, err := p.gateway.Transaction().Find(ctx, providerRef)
	if err != nil {
		return "", apperr.Provider("braintree find transaction", err)
	}
	return braintreeStatus(tx.Status), nil
}
