package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", AuthDev)
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, PaymentSandbox, cfg.PaymentProvider)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory dev", Config{StorageDriver: StorageMemory, PaymentProvider: PaymentSandbox, AuthMode: AuthDev}, false},
		{"firestore without project", Config{StorageDriver: StorageFirestore, PaymentProvider: PaymentSandbox, AuthMode: AuthDev}, true},
		{"postgres without dsn", Config{StorageDriver: StoragePostgres, PaymentProvider: PaymentSandbox, AuthMode: AuthDev}, true},
		{"stripe without key", Config{StorageDriver: StorageMemory, PaymentProvider: PaymentStripe, AuthMode: AuthDev}, true},
		{"dev auth in production", Config{StorageDriver: StorageMemory, PaymentProvider: PaymentSandbox, AuthMode: AuthDev, Environment: "production"}, true},
		{"unknown driver", Config{StorageDriver: "mysql", PaymentProvider: PaymentSandbox, AuthMode: AuthDev}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
