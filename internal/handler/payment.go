package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/dto"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/middleware"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/service"
)

type PaymentHandler struct {
	checkoutService  service.CheckoutService
	reconcileService service.ReconciliationService
	frontendURL      string
	log              *zap.Logger
}

func NewPaymentHandler(
	checkoutService service.CheckoutService,
	reconcileService service.ReconciliationService,
	frontendURL string,
	log *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		checkoutService:  checkoutService,
		reconcileService: reconcileService,
		frontendURL:      frontendURL,
		log:              log.Named("handler"),
	}
}

func (h *PaymentHandler) CheckoutCart(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutCartRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	resp, err := h.checkoutService.CheckoutCart(ctx, middleware.UserID(c), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) CheckoutSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.PlanID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "planId is required")
	}

	resp, err := h.checkoutService.CheckoutSubscription(ctx, middleware.UserID(c), req.PlanID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) Capture(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CaptureRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}

	resp, err := h.reconcileService.Capture(ctx, req.Token)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// Webhook ingests one processor delivery. The raw body must be read before
// any parsing because signature verification covers the exact bytes sent.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := providerKind(c.Param("provider"))
	if err != nil {
		return err
	}

	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read request body")
	}

	resp, err := h.reconcileService.HandleWebhook(ctx, kind, c.Request().Header, rawBody)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func providerKind(param string) (model.PaymentProvider, error) {
	switch param {
	case "stripe":
		return model.ProviderStripe, nil
	case "paypal":
		return model.ProviderPaypal, nil
	case "braintree":
		return model.ProviderBraintree, nil
	}
	return "", echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown provider %q", param))
}

// PaymentStatus is visible to the payment's owner and to admins.
func (h *PaymentHandler) PaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	resp, err := h.reconcileService.PaymentStatus(ctx, c.Param("paymentId"))
	if err != nil {
		return err
	}

	if role, _ := c.Get(middleware.ContextRole).(string); role != middleware.RoleAdmin && resp.UserID != middleware.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your payment")
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) VerifyPaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	resp, err := h.reconcileService.VerifyPaymentStatus(ctx, c.Param("paymentId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleSuccess is the hosted-session return URL. Stripe passes session_id,
// PayPal passes token; both are the processor session reference. Capture
// runs before the redirect so the storefront lands on a settled payment even
// when the webhook is slow.
func (h *PaymentHandler) HandleSuccess(c echo.Context) error {
	ctx := c.Request().Context()

	providerRef := c.QueryParam("session_id")
	if providerRef == "" {
		providerRef = c.QueryParam("token")
	}
	if providerRef == "" {
		return c.Redirect(http.StatusFound, h.frontendURL+"/checkout/error")
	}

	resp, err := h.reconcileService.Capture(ctx, providerRef)
	if err != nil {
		h.log.Warn("capture on return failed",
			zap.String("provider_ref", providerRef),
			zap.Error(err),
		)
		return c.Redirect(http.StatusFound, h.frontendURL+"/checkout/error")
	}

	return c.Redirect(http.StatusFound,
		fmt.Sprintf("%s/checkout/complete?paymentId=%s&status=%s", h.frontendURL, resp.PaymentID, resp.Status))
}

func (h *PaymentHandler) HandleCancel(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.frontendURL+"/checkout/cancelled")
}
