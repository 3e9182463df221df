package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Gateway  GatewayConfig
	Ledger   LedgerConfig
	Secrets  SecretsConfig
}

// ServerConfig holds server-specific configuration for the ambient health/metrics surface.
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds NATS event bus configuration.
type NATSConfig struct {
	URL     string
	Enabled bool
}

// GatewayConfig holds payment gateway configuration.
type GatewayConfig struct {
	// Mode selects between "stripe" and "mock". Tests and local runs use "mock".
	Mode string
	// StripeSecretKeyRef is a pkg/secrets reference string, not the key itself.
	StripeSecretKeyRef string
	// MinChargeCents is the smallest amount the Stripe gateway will attempt to
	// charge; a sale residual at or below it is absorbed as a discount instead
	// of being charged.
	MinChargeCents int64
	// InstanceID is embedded in idempotency keys to disambiguate concurrent deployments.
	InstanceID string
	// Live selects which of a TransportCompany's two Stripe accounts
	// (StripeClientID vs StripeSandboxID) a charge's Destination targets.
	Live bool
}

// LedgerConfig holds ledger tolerances loaded from the environment. The
// ledger workflows do not read them: Build checks against the
// ledger.ZeroSumTolerance constant.
type LedgerConfig struct {
	// ZeroSumTolerance is a drift bound between debits and credits in a built transaction.
	ZeroSumTolerance float64
	// RefundToleranceCents is an over-refund bound, in cents.
	RefundToleranceCents int64
}

// SecretsConfig selects and configures the pkg/secrets backend. Only the
// fields the configured Provider actually needs are read.
type SecretsConfig struct {
	Provider string

	VaultAddress   string
	VaultToken     string
	VaultMountPath string

	AWSRegion string

	GCPProjectID string

	KubernetesBasePath string
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "busledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Gateway: GatewayConfig{
			Mode:                getEnv("GATEWAY_MODE", "mock"),
			StripeSecretKeyRef:  getEnv("STRIPE_SECRET_KEY_REF", ""),
			MinChargeCents:      int64(getEnvAsInt("GATEWAY_MIN_CHARGE_CENTS", 50)),
			InstanceID:          getEnv("TEST_IDEMPOTENCY", "local"),
			Live:                getEnv("STRIPE_MODE", "test") == "live",
		},
		Ledger: LedgerConfig{
			ZeroSumTolerance:     getEnvAsFloat("LEDGER_ZERO_SUM_TOLERANCE", 1e-6),
			RefundToleranceCents: int64(getEnvAsInt("LEDGER_REFUND_TOLERANCE_CENTS", 0)),
		},
		Secrets: SecretsConfig{
			Provider:           getEnv("SECRETS_PROVIDER", ""),
			VaultAddress:       getEnv("VAULT_ADDR", ""),
			VaultToken:         getEnv("VAULT_TOKEN", ""),
			VaultMountPath:     getEnv("VAULT_MOUNT_PATH", ""),
			AWSRegion:          getEnv("AWS_REGION", ""),
			GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
			KubernetesBasePath: getEnv("SECRETS_K8S_BASE_PATH", ""),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
