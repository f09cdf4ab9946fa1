package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/config"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type paypalProvider struct {
	httpClient   *http.Client
	baseApiURL   string
	clientID     string
	clientSecret string
	webhookID    string
}

func NewPaypalProvider(cfg *config.Paypal) Provider {
	return &paypalProvider{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:   cfg.BaseApiURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
	}
}

func (p *paypalProvider) Kind() model.PaymentProvider {
	return model.ProviderPaypal
}

// customID is the correlation payload embedded in PayPal's custom_id field.
// Keys are single letters to fit the field's 127-character limit alongside
// two uuids.
type customID struct {
	PaymentID      string `json:"p"`
	OrderID        string `json:"o,omitempty"`
	SubscriptionID string `json:"s,omitempty"`
	Type           string `json:"t"`
}

func encodeCustomID(in InitializeInput) (string, error) {
	b, err := json.Marshal(customID{
		PaymentID:      in.PaymentID,
		OrderID:        in.Metadata.OrderID,
		SubscriptionID: in.Metadata.SubscriptionID,
		Type:           string(in.Metadata.Type),
	})
	if err != nil {
		return "", fmt.Errorf("marshal custom id: %w", err)
	}
	return string(b), nil
}

func decodeCustomID(raw string) EventMetadata {
	var c customID
	if raw == "" || json.Unmarshal([]byte(raw), &c) != nil {
		return EventMetadata{}
	}
	return EventMetadata{
		Type:           model.MetadataType(c.Type),
		PaymentID:      c.PaymentID,
		OrderID:        c.OrderID,
		SubscriptionID: c.SubscriptionID,
	}
}

func (p *paypalProvider) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(p.clientID + ":" + p.clientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperr.Provider("paypal oauth token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", apperr.Provider("paypal oauth token", fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	return res.AccessToken, nil
}

func (p *paypalProvider) post(ctx context.Context, path, accessToken string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseApiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Provider("paypal "+path, err)
	}
	return resp, nil
}

type paypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

func extractLink(links []paypalLink, rel string) string {
	for _, link := range links {
		if link.Rel == rel {
			return link.Href
		}
	}
	return ""
}

func (p *paypalProvider) InitializePayment(ctx context.Context, in InitializeInput) (*Session, error) {
	accessToken, err := p.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	custom, err := encodeCustomID(in)
	if err != nil {
		return nil, err
	}

	if in.Plan != nil {
		return p.createSubscription(ctx, accessToken, in, custom)
	}
	return p.createOrder(ctx, accessToken, in, custom)
}

func (p *paypalProvider) createOrder(ctx context.Context, accessToken string, in InitializeInput, custom string) (*Session, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": custom,
				"amount": map[string]string{
					"currency_code": strings.ToUpper(in.Currency),
					"value":         in.Amount.StringFixed(2),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": in.SuccessURL,
			"cancel_url": in.CancelURL,
		},
	}

	resp, err := p.post(ctx, "/v2/checkout/orders", accessToken, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperr.Provider("paypal create order", fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
	}

	var result struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode paypal response: %w", err)
	}

	return &Session{
		ProviderRef: result.ID,
		ApprovalURL: extractLink(result.Links, "approve"),
	}, nil
}

func (p *paypalProvider) createSubscription(ctx context.Context, accessToken string, in InitializeInput, custom string) (*Session, error) {
	if in.Plan.ProviderPlanRef == "" {
		return nil, apperr.Provider("paypal create subscription",
			fmt.Errorf("plan %s has no paypal billing plan reference", in.Plan.PlanID))
	}

	payload := map[string]interface{}{
		"plan_id":   in.Plan.ProviderPlanRef,
		"custom_id": custom,
		"application_context": map[string]string{
			"return_url": in.SuccessURL,
			"cancel_url": in.CancelURL,
		},
	}

	resp, err := p.post(ctx, "/v1/billing/subscriptions", accessToken, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperr.Provider("paypal create subscription", fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
	}

	var result struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode paypal response: %w", err)
	}

	return &Session{
		ProviderRef:            result.ID,
		ApprovalURL:            extractLink(result.Links, "approve"),
		ProviderSubscriptionID: result.ID,
	}, nil
}

type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				ID string `json:"id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func orderStatus(status string) model.PaymentStatus {
	switch status {
	case "COMPLETED":
		return model.PaymentPaid
	case "VOIDED":
		return model.PaymentCancelled
	default: // CREATED, SAVED, APPROVED, PAYER_ACTION_REQUIRED
		return model.PaymentPending
	}
}

func (p *paypalProvider) CapturePayment(ctx context.Context, providerRef string) (*CaptureResult, error) {
	accessToken, err := p.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, fmt.Sprintf("/v2/checkout/orders/%s/capture", providerRef), accessToken, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Capturing twice is not an error: report the order's settled state.
		if resp.StatusCode == http.StatusUnprocessableEntity && bytes.Contains(body, []byte("ORDER_ALREADY_CAPTURED")) {
			return p.fetchOrderResult(ctx, accessToken, providerRef)
		}
		return nil, apperr.Provider("paypal capture order", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var order paypalOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("decode capture response: %w", err)
	}

	return captureResult(&order), nil
}

func (p *paypalProvider) fetchOrderResult(ctx context.Context, accessToken, providerRef string) (*CaptureResult, error) {
	order, err := p.getOrder(ctx, accessToken, providerRef)
	if err != nil {
		return nil, err
	}
	return captureResult(order), nil
}

func captureResult(order *paypalOrder) *CaptureResult {
	res := &CaptureResult{Status: orderStatus(order.Status)}
	for _, pu := range order.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			res.TransactionID = pu.Payments.Captures[0].ID
			break
		}
	}
	return res
}

func (p *paypalProvider) getOrder(ctx context.Context, accessToken, orderID string) (*paypalOrder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/checkout/orders/%s", p.baseApiURL, orderID), nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Provider("paypal get order", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperr.Provider("paypal get order", fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
	}

	var order paypalOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return &order, nil
}

// VerifyWebhook authenticates the notification through PayPal's own
// verify-webhook-signature API. The raw body is embedded untouched: any
// re-serialization would invalidate the transmission signature.
func (p *paypalProvider) VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) error {
	if len(rawBody) == 0 {
		return fmt.Errorf("empty body: %w", apperr.ErrWebhookVerification)
	}
	transmissionSig := headers.Get("Paypal-Transmission-Sig")
	if transmissionSig == "" {
		return fmt.Errorf("missing Paypal-Transmission-Sig header: %w", apperr.ErrWebhookVerification)
	}

	accessToken, err := p.getAccessToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  transmissionSig,
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}

	resp, err := p.post(ctx, "/v1/notifications/verify-webhook-signature", accessToken, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("verify api status %d: %s: %w", resp.StatusCode, string(b), apperr.ErrWebhookVerification)
	}

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode verification response: %w", err)
	}
	if res.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("verification status %s: %w", res.VerificationStatus, apperr.ErrWebhookVerification)
	}
	return nil
}

type paypalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                 string `json:"id"`
		Status             string `json:"status"`
		CustomID           string `json:"custom_id"`
		BillingAgreementID string `json:"billing_agreement_id"`
		SupplementaryData  struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

func (p *paypalProvider) ParseWebhook(ctx context.Context, rawBody []byte) (*WebhookResult, error) {
	var event paypalWebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	custom := event.Resource.CustomID
	if custom == "" && len(event.Resource.PurchaseUnits) > 0 {
		custom = event.Resource.PurchaseUnits[0].CustomID
	}

	res := &WebhookResult{
		EventID:   event.ID,
		EventType: event.EventType,
		Metadata:  decodeCustomID(custom),
	}

	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		res.ProviderRef = event.Resource.ID
		res.Status = model.PaymentPending

	case "PAYMENT.CAPTURE.COMPLETED":
		res.ProviderRef = event.Resource.SupplementaryData.RelatedIDs.OrderID
		res.Status = model.PaymentPaid

	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		res.ProviderRef = event.Resource.SupplementaryData.RelatedIDs.OrderID
		res.Status = model.PaymentFailed

	case "PAYMENT.CAPTURE.REFUNDED":
		res.ProviderRef = event.Resource.SupplementaryData.RelatedIDs.OrderID
		res.Status = model.PaymentRefunded

	case "BILLING.SUBSCRIPTION.ACTIVATED":
		res.ProviderRef = event.Resource.ID
		res.Status = model.PaymentPaid
		res.Metadata.Type = model.MetadataSubscription
		res.Metadata.ProviderSubscriptionID = event.Resource.ID

	case "BILLING.SUBSCRIPTION.CANCELLED", "BILLING.SUBSCRIPTION.EXPIRED":
		res.ProviderRef = event.Resource.ID
		res.Status = model.PaymentCancelled
		res.Metadata.Type = model.MetadataSubscription
		res.Metadata.ProviderSubscriptionID = event.Resource.ID

	case "PAYMENT.SALE.COMPLETED":
		// Recurring billing charge for an active subscription.
		res.ProviderRef = event.Resource.BillingAgreementID
		res.Status = model.PaymentPaid
		res.Metadata.Type = model.MetadataSubscription
		res.Metadata.ProviderSubscriptionID = event.Resource.BillingAgreementID
		res.Metadata.Renewal = true

	case "CUSTOMER.ACCOUNT.CREATED", "CUSTOMER.ACCOUNT.UPDATED",
		"VAULT.PAYMENT-TOKEN.CREATED", "VAULT.PAYMENT-TOKEN.DELETED":
		return nil, ErrEventIgnored

	default:
		res.ProviderRef = event.Resource.ID
		res.Status = model.PaymentPending
		res.Metadata.UnhandledEvent = true
	}

	return res, nil
}

func (p *paypalProvider) VerifyPaymentStatus(ctx context.Context, providerRef string) (model.PaymentStatus, error) {
	accessToken, err := p.getAccessToken(ctx)
	if err != nil {
		return "", err
	}
	order, err := p.getOrder(ctx, accessToken, providerRef)
	if err != nil {
		return "", err
	}
	return orderStatus(order.Status), nil
}
