package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory    = "memory"
	StorageFirestore = "firestore"
	StoragePostgres  = "postgres"

	PaymentSandbox = "sandbox"
	PaymentStripe  = "stripe"

	AuthFirebase = "firebase"
	AuthDev      = "dev"
)

type Config struct {
	ServerPort  string
	Environment string

	StorageDriver   string
	FirebaseProject string
	CredentialsJSON string
	CredentialsPath string
	DatabaseURL     string
	StorageBucket   string

	AllowedOrigins []string

	AuthMode string

	PaymentProvider string
	StripeSecretKey string
	StripeBaseURL   string
	Currency        string
	PaymentTimeout  time.Duration

	ReconcileInterval  time.Duration
	ReconcileGrace     time.Duration
	OutboxPollInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		StorageDriver:      getEnv("STORAGE_DRIVER", StorageMemory),
		FirebaseProject:    getEnv("FIREBASE_PROJECT_ID", ""),
		CredentialsJSON:    getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		CredentialsPath:    getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", ""),
		AllowedOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS"),
		AuthMode:           getEnv("AUTH_MODE", AuthFirebase),
		PaymentProvider:    getEnv("PAYMENT_PROVIDER", PaymentSandbox),
		StripeSecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
		StripeBaseURL:      getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		Currency:           strings.ToLower(getEnv("CURRENCY", "usd")),
		PaymentTimeout:     time.Duration(getEnvAsInt64("PAYMENT_TIMEOUT", 30)) * time.Second,
		ReconcileInterval:  time.Duration(getEnvAsInt64("RECONCILE_INTERVAL", 300)) * time.Second,
		ReconcileGrace:     time.Duration(getEnvAsInt64("RECONCILE_GRACE", 60)) * time.Second,
		OutboxPollInterval: time.Duration(getEnvAsInt64("OUTBOX_POLL_INTERVAL", 500)) * time.Millisecond,
		KafkaBrokers:       getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "marketplace-events"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects driver selections that are missing their connection settings.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StorageFirestore:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore driver")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.PaymentProvider {
	case PaymentSandbox:
	case PaymentStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required for the stripe provider")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	switch c.AuthMode {
	case AuthDev:
		if c.Environment == "production" {
			return fmt.Errorf("AUTH_MODE=dev is not allowed in production")
		}
	case AuthFirebase:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for firebase auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	return nil
}

// NeedsGoogleCredentials reports whether any Google client has to be constructed.
func (c *Config) NeedsGoogleCredentials() bool {
	return c.StorageDriver == StorageFirestore || c.AuthMode == AuthFirebase || c.StorageBucket != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
