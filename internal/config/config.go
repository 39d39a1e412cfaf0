package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTP     HTTPConfig
	Backend  BackendConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Logging  LoggingConfig
	Session  SessionConfig
	Checkout CheckoutConfig
}

type HTTPConfig struct {
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxRequestBodySize int64
	CookieSecure       bool
}

type BackendConfig struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type StoreConfig struct {
	Driver        string
	Prefix        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDatabase string
	BoltPath      string
}

// PostgresConfig configures the checkout journal. An empty Host disables it.
type PostgresConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// KafkaConfig configures the outbox publisher. It only runs with the journal.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type StripeConfig struct {
	SecretKey string
}

type LoggingConfig struct {
	Level string
}

type SessionConfig struct {
	CookieName      string
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

type CheckoutConfig struct {
	StepTimeout time.Duration
	MarkerTTL   time.Duration
}

// Load reads the configuration from the environment, falling back to defaults
// suited for local development.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:               getEnv("HTTP_PORT", "8080"),
			RequestTimeout:     getDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			ReadTimeout:        getDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:       getDuration("HTTP_WRITE_TIMEOUT", 35*time.Second),
			IdleTimeout:        getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			MaxRequestBodySize: int64(getInt("HTTP_MAX_BODY_BYTES", 1<<20)), // 1MB
			CookieSecure:       getBool("HTTP_COOKIE_SECURE", false),
		},
		Backend: BackendConfig{
			BaseURL:         getEnv("BACKEND_URL", "http://localhost:8000/api"),
			Timeout:         getDuration("BACKEND_TIMEOUT", 30*time.Second),
			BreakerFailures: uint32(getInt("BACKEND_BREAKER_FAILURES", 5)),
			BreakerCooldown: getDuration("BACKEND_BREAKER_COOLDOWN", 30*time.Second),
		},
		Store: StoreConfig{
			Driver:        getEnv("STORE_DRIVER", "memory"),
			Prefix:        getEnv("STORE_PREFIX", "storefront:"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getInt("REDIS_DB", 0),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnv("MONGO_DATABASE", "storefront"),
			BoltPath:      getEnv("BOLT_PATH", "storefront.db"),
		},
		Postgres: PostgresConfig{
			Host:              getEnv("POSTGRES_HOST", ""),
			Port:              getInt("POSTGRES_PORT", 5432),
			User:              getEnv("POSTGRES_USER", "storefront"),
			Password:          getEnv("POSTGRES_PASSWORD", ""),
			DBName:            getEnv("POSTGRES_DB", "storefront"),
			SSLMode:           getEnv("POSTGRES_SSLMODE", "disable"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "internal/journal/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "checkout-events"),
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			CookieName:      getEnv("SESSION_COOKIE", "shop_session-id"),
			IdleTimeout:     getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			CleanupInterval: getDuration("SESSION_CLEANUP_INTERVAL", time.Minute),
		},
		Checkout: CheckoutConfig{
			StepTimeout: getDuration("CHECKOUT_STEP_TIMEOUT", 30*time.Second),
			MarkerTTL:   getDuration("CHECKOUT_MARKER_TTL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("HTTP_PORT is required"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_REQUEST_TIMEOUT must be positive"))
	}
	switch c.Store.Driver {
	case "memory", "redis", "mongo", "bolt":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}
	if c.Kafka.Enabled() && !c.Postgres.Enabled() {
		errs = append(errs, errors.New("KAFKA_BROKERS needs POSTGRES_HOST: events are published from the journal outbox"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("SESSION_COOKIE is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
