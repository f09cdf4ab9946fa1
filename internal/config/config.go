package config

import "github.com/shopspring/decimal"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer

	BaseURL     string `env:"BASE_URL"`
	FrontendURL string `env:"FRONTEND_URL"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"wellness.db"`

	JWTSecret string `env:"JWT_SECRET"`

	// ActiveProvider selects which processor new checkout sessions are opened
	// with; webhooks are routed by path so every configured provider stays live.
	ActiveProvider string `env:"ACTIVE_PROVIDER" envDefault:"STRIPE"`

	Stripe    Stripe    `envPrefix:"STRIPE_"`
	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	Braintree Braintree `envPrefix:"BRAINTREE_"`

	Redis Redis `envPrefix:"REDIS_"`
	Kafka Kafka `envPrefix:"KAFKA_"`

	Checkout Checkout
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT" envDefault:"sandbox"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Redis struct {
	Addr string `env:"ADDR"` // empty disables checkout rate limiting
	DB   int    `env:"DB" envDefault:"0"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","` // empty falls back to the log publisher
	Topic   string   `env:"TOPIC" envDefault:"payment-events"`
}

type Checkout struct {
	ShippingFlatRate          decimal.Decimal `env:"SHIPPING_FLAT_RATE" envDefault:"3.50"`
	GlobalDiscountPercent     decimal.Decimal `env:"GLOBAL_DISCOUNT_PERCENT" envDefault:"0"`
	GlobalDiscountMinSubtotal decimal.Decimal `env:"GLOBAL_DISCOUNT_MIN_SUBTOTAL" envDefault:"0"`
	RateLimit                 int             `env:"CHECKOUT_RATE_LIMIT" envDefault:"30"`
	RateWindowSec             int             `env:"CHECKOUT_RATE_WINDOW_SEC" envDefault:"60"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
