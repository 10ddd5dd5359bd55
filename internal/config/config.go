// Package config provides configuration structures and validation for the gateway processes.
// It handles environment-based configuration for the HTTP gateway, the reference worker and
// the operator CLI, including provider credentials, storage, messaging and verification policy.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a subsystem's configuration and is validated during startup.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	Outbox       OutboxConfig
	WorkerPool   WorkerPoolConfig
	Provider     ProviderConfig
	Verification VerificationConfig
	Governance   GovernanceConfig
	Financial    FinancialConfig
	Polling      PollingConfig
	RateLimit    RateLimitConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	PaymentEventTopic string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the FX rate cache connection. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OutboxConfig contains payment event outbox relay configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig bounds the number of concurrent verification calls
type WorkerPoolConfig struct {
	Size int
}

// ProviderConfig contains the POS provider API credentials and timeouts
type ProviderConfig struct {
	Endpoint       string
	APIKey         string
	APISecret      string
	StoreSlug      string
	Timeout        time.Duration // Total request timeout
	ConnectTimeout time.Duration
}

// VerificationConfig contains the verification policy
type VerificationConfig struct {
	StrictReference       bool
	PaymentMethods        []string
	AmountPrimaryFields   []string
	AmountSecondaryFields []string
}

// GovernanceConfig controls reference lifecycle tracking
type GovernanceConfig struct {
	Enabled             bool
	ReferenceTTL        time.Duration
	ExpirySweepInterval time.Duration
}

// FinancialConfig controls financial record keeping and currency normalization
type FinancialConfig struct {
	Enabled         bool
	BaseCurrency    string
	DefaultCurrency string
	StaticRates     map[string]decimal.Decimal // Units of base currency per unit of the keyed currency
	RateCacheTTL    time.Duration
}

// PollingConfig is advertised to polling clients
type PollingConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// RateLimitConfig holds limiter rates in the "<limit>-<period>" format, e.g. "60-M"
type RateLimitConfig struct {
	Poll string
}

// IsProduction reports whether the application runs in the production environment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Application.Env, "production")
}

// validate performs validation of all configuration values shared by every process
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.PaymentEventTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_PAYMENT_EVENT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate verification policy
	if len(c.Verification.PaymentMethods) == 0 {
		validationErrors = append(validationErrors, "PAYMENT_METHODS is required")
	}
	if len(c.Verification.AmountPrimaryFields) == 0 {
		validationErrors = append(validationErrors, "AMOUNT_PRIMARY_FIELDS is required")
	}
	if c.Provider.Timeout <= 0 {
		validationErrors = append(validationErrors, "PROVIDER_TIMEOUT must be greater than 0")
	}
	if c.Provider.ConnectTimeout <= 0 {
		validationErrors = append(validationErrors, "PROVIDER_CONNECT_TIMEOUT must be greater than 0")
	}
	if c.Governance.ReferenceTTL <= 0 {
		validationErrors = append(validationErrors, "REFERENCE_TTL must be greater than 0")
	}
	if c.Governance.ExpirySweepInterval <= 0 {
		validationErrors = append(validationErrors, "EXPIRY_SWEEP_INTERVAL must be greater than 0")
	}
	if len(c.Financial.BaseCurrency) != 3 {
		validationErrors = append(validationErrors, "BASE_CURRENCY must be a 3-letter code")
	}
	if len(c.Financial.DefaultCurrency) != 3 {
		validationErrors = append(validationErrors, "DEFAULT_CURRENCY must be a 3-letter code")
	}
	for currency, rate := range c.Financial.StaticRates {
		if !rate.IsPositive() {
			validationErrors = append(validationErrors, "FX_STATIC_RATES rate for "+currency+" must be greater than 0")
		}
	}
	if c.Polling.Interval <= 0 {
		validationErrors = append(validationErrors, "POLLING_INTERVAL must be greater than 0")
	}
	if c.RateLimit.Poll == "" {
		validationErrors = append(validationErrors, "RATE_LIMIT_POLL is required")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

// ValidateProvider checks the credentials needed to talk to the POS provider.
// Only processes that call the provider invoke it, so a missing key fails at startup
// rather than on the first request.
func (c *Config) ValidateProvider() error {
	var validationErrors []string

	if c.Provider.Endpoint == "" {
		validationErrors = append(validationErrors, "PROVIDER_ENDPOINT is required")
	}
	if c.Provider.APIKey == "" {
		validationErrors = append(validationErrors, "PROVIDER_API_KEY is required")
	}
	if c.Provider.APISecret == "" {
		validationErrors = append(validationErrors, "PROVIDER_API_SECRET is required")
	}
	if c.Provider.StoreSlug == "" {
		validationErrors = append(validationErrors, "PROVIDER_STORE_SLUG is required")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
