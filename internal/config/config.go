package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PaymentConfig is the only input the payment gateway adapter reads. The mode
// flag is resolved once here and never consulted per request.
type PaymentConfig struct {
	Simulation         bool
	StripeSecretKey    string
	StripeBaseURL      string
	AllowRawCardData   bool
	GatewayTimeout     time.Duration
	Currency           string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string

	// InternalSecretKey grants trusted services the internal rate tier.
	InternalSecretKey string
	Payment           PaymentConfig
}

const (
	defaultStripeBaseURL  = "https://api.stripe.com"
	defaultGatewayTimeout = 15 * time.Second
	defaultCurrency       = "usd"
	defaultAppPort        = "8080"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getenv("APP_PORT", defaultAppPort),
		AppEnv:     os.Getenv("APP_ENV"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		return nil, errors.New("DB_HOST is not set")
	}

	simulation, err := parseBool("PAYMENT_SIMULATION", true)
	if err != nil {
		return nil, err
	}
	allowRaw, err := parseBool("STRIPE_ALLOW_RAW_CARD_DATA", false)
	if err != nil {
		return nil, err
	}

	timeout := defaultGatewayTimeout
	if v := strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_TIMEOUT")); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("PAYMENT_GATEWAY_TIMEOUT must be a positive duration, got %q", v)
		}
	}

	cfg.Payment = PaymentConfig{
		Simulation:         simulation,
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		StripeBaseURL:      strings.TrimRight(getenv("STRIPE_BASE_URL", defaultStripeBaseURL), "/"),
		AllowRawCardData:   allowRaw,
		GatewayTimeout:     timeout,
		Currency:           strings.ToLower(getenv("PAYMENT_CURRENCY", defaultCurrency)),
		CheckoutSuccessURL: os.Getenv("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:  os.Getenv("CHECKOUT_CANCEL_URL"),
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}
