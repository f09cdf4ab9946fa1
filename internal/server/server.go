package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/handler"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/middleware"
)

type Options struct {
	JWTSecret     string
	RedisClient   *rd.Client // nil disables checkout rate limiting
	RateLimit     int
	RateWindowSec int
}

type Server struct {
	echo           *echo.Echo
	log            *zap.Logger
	paymentHandler *handler.PaymentHandler
	opts           Options
}

func NewServer(log *zap.Logger, paymentHandler *handler.PaymentHandler, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(requestLogger(log))
	e.HTTPErrorHandler = errorHandler(log)

	s := &Server{
		echo:           e,
		log:            log.Named("server"),
		paymentHandler: paymentHandler,
		opts:           opts,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	payment := api.Group("/payment")

	// -------- processor callbacks (no auth: the processor is the caller) --------
	payment.POST("/webhook/:provider", s.paymentHandler.Webhook)
	payment.GET("/redirect/success", s.paymentHandler.HandleSuccess)
	payment.GET("/redirect/cancel", s.paymentHandler.HandleCancel)

	// -------- customer surface --------
	auth := payment.Group("", middleware.AuthMiddleware(s.opts.JWTSecret))

	checkout := auth.Group("/checkout")
	if s.opts.RedisClient != nil {
		checkout.Use(middleware.RedisRateLimit(
			s.opts.RedisClient, s.log,
			s.opts.RateLimit, time.Duration(s.opts.RateWindowSec)*time.Second,
		))
	}
	checkout.POST("/cart", s.paymentHandler.CheckoutCart)
	checkout.POST("/subscription", s.paymentHandler.CheckoutSubscription)

	auth.POST("/capture", s.paymentHandler.Capture)
	auth.POST("/verify/:paymentId", s.paymentHandler.VerifyPaymentStatus)
	// owner-or-admin check happens in the handler
	auth.GET("/status/:paymentId", s.paymentHandler.PaymentStatus)
}

// errorHandler maps the error taxonomy to HTTP statuses in one place, so
// handlers and services return plain wrapped errors.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal error"

		var (
			he *echo.HTTPError
			ve *apperr.ValidationError
		)
		switch {
		case errors.As(err, &he):
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		case errors.As(err, &ve):
			_ = c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error":   "validation_failed",
				"reasons": ve.Reasons,
			})
			return
		case errors.Is(err, apperr.ErrWebhookVerification):
			code = http.StatusBadRequest
			msg = "webhook verification failed"
		case errors.Is(err, apperr.ErrNotFound):
			code = http.StatusNotFound
			msg = err.Error()
		case errors.Is(err, apperr.ErrConflict):
			code = http.StatusConflict
			msg = err.Error()
		case errors.Is(err, apperr.ErrProvider):
			code = http.StatusBadGateway
			msg = "payment provider error"
		}

		if code >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	})
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
