package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Elastic  ElasticsearchConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Catalog  CatalogConfig
}

type ServerConfig struct {
	AppEnv          string
	HTTPPort        string
	GRPCPort        string
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
	FilePath          string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers             []string
	ReconciliationTopic string
	GroupID             string
}

type ElasticsearchConfig struct {
	Enabled   bool
	Addresses []string
	Username  string
	Password  string
}

// GatewayConfig holds the payment processor credentials. They are read once
// at startup and handed to an explicitly constructed client.
type GatewayConfig struct {
	Environment string // sandbox | production
	MerchantID  string
	PublicKey   string
	PrivateKey  string
	Endpoint    string // optional override of the GraphQL endpoint
	Timeout     time.Duration
}

type CheckoutConfig struct {
	ChargeTimeout  time.Duration
	PersistTimeout time.Duration
	PersistRetries int
	PersistBackoff time.Duration
	NonceTTL       time.Duration
	PriceCheck     string // off | warn
}

type CatalogConfig struct {
	ListLimit    int
	CacheTTL     time.Duration
	QueryTimeout time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          getEnv("APP_ENV", "dev"),
			HTTPPort:        getEnv("HTTP_PORT", ":8080"),
			GRPCPort:        getEnv("GRPC_PORT", ":8082"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
			FilePath:          getEnv("LOGGER_FILE_PATH", ""),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_checkout"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", "your-secret-key-change-this-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:             getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ReconciliationTopic: getEnv("KAFKA_TOPIC_RECONCILIATION", "payments.reconciliation"),
			GroupID:             getEnv("KAFKA_GROUP_RECONCILIATION", "checkout-reconciler"),
		},
		Elastic: ElasticsearchConfig{
			Enabled:   getEnvBool("ELASTICSEARCH_ENABLED", false),
			Addresses: getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		Gateway: GatewayConfig{
			Environment: getEnv("BRAINTREE_ENVIRONMENT", "sandbox"),
			MerchantID:  getEnv("BRAINTREE_MERCHANT_ID", ""),
			PublicKey:   getEnv("BRAINTREE_PUBLIC_KEY", ""),
			PrivateKey:  getEnv("BRAINTREE_PRIVATE_KEY", ""),
			Endpoint:    getEnv("BRAINTREE_ENDPOINT", ""),
			Timeout:     getEnvDuration("BRAINTREE_TIMEOUT", 20*time.Second),
		},
		Checkout: CheckoutConfig{
			ChargeTimeout:  getEnvDuration("CHECKOUT_CHARGE_TIMEOUT", 30*time.Second),
			PersistTimeout: getEnvDuration("CHECKOUT_PERSIST_TIMEOUT", 5*time.Second),
			PersistRetries: getEnvInt("CHECKOUT_PERSIST_RETRIES", 3),
			PersistBackoff: getEnvDuration("CHECKOUT_PERSIST_BACKOFF", 200*time.Millisecond),
			NonceTTL:       getEnvDuration("CHECKOUT_NONCE_TTL", 24*time.Hour),
			PriceCheck:     getEnv("CHECKOUT_PRICE_CHECK", "warn"),
		},
		Catalog: CatalogConfig{
			ListLimit:    getEnvInt("CATALOG_LIST_LIMIT", 12),
			CacheTTL:     getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
			QueryTimeout: getEnvDuration("CATALOG_QUERY_TIMEOUT", 5*time.Second),
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.MerchantID == "" || c.Gateway.PublicKey == "" || c.Gateway.PrivateKey == "" {
		errs = append(errs, errors.New("braintree merchant id, public key and private key are required"))
	}
	switch c.Gateway.Environment {
	case "sandbox", "production":
	default:
		errs = append(errs, fmt.Errorf("unknown BRAINTREE_ENVIRONMENT %q", c.Gateway.Environment))
	}
	switch c.Checkout.PriceCheck {
	case "off", "warn":
	default:
		errs = append(errs, fmt.Errorf("unknown CHECKOUT_PRICE_CHECK %q", c.Checkout.PriceCheck))
	}
	if c.Checkout.ChargeTimeout <= 0 {
		errs = append(errs, errors.New("CHECKOUT_CHARGE_TIMEOUT must be positive"))
	}
	if c.Checkout.PersistRetries < 1 {
		errs = append(errs, errors.New("CHECKOUT_PERSIST_RETRIES must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
