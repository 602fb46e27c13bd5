package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

type Config struct {
	Env            string
	HTTPPort       string
	GRPCPort       string
	RequestTimeout time.Duration

	CatalogBackend string
	SQLitePath     string

	SessionBackend string
	MongoURI       string
	MongoDBName    string
	SessionTTL     time.Duration
	RedisAddr      string // empty disables the session cache
	RedisPassword  string
	CacheTTL       time.Duration

	OrdersBackend    string
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	KafkaBrokers []string // empty disables event publishing
	KafkaTopic   string
	KafkaGroupID string

	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal

	PaymentDelay          time.Duration
	PaymentDeclineNumbers []string
	PaymentFailurePercent int
	PaymentTimeout        time.Duration
	PaymentMaxAttempts    int

	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string // wins over AdminPassword when set
	JWTSecret         string
	TokenTTL          time.Duration
}

// Load reads the configuration from the environment, after applying a .env
// file from the working directory when one exists.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	p := &parser{}
	cfg := Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", "50051"),
		RequestTimeout: p.durationVar("REQUEST_TIMEOUT", 30*time.Second),

		CatalogBackend: getEnv("CATALOG_BACKEND", BackendMemory),
		SQLitePath:     getEnv("SQLITE_PATH", "storefront.db"),

		SessionBackend: getEnv("SESSION_BACKEND", BackendMemory),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "storefront"),
		SessionTTL:     p.durationVar("SESSION_TTL", 30*24*time.Hour),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		CacheTTL:       p.durationVar("CACHE_TTL", 15*time.Minute),

		OrdersBackend:    getEnv("ORDERS_BACKEND", BackendMemory),
		PostgresHost:     getEnv("DB_HOST", "localhost"),
		PostgresPort:     p.intVar("DB_PORT", 5432),
		PostgresUser:     getEnv("DB_USER", "postgres"),
		PostgresPassword: getEnv("DB_PASSWORD", "postgres"),
		PostgresDB:       getEnv("DB_NAME", "storefront"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "storefront-notifier"),

		FreeShippingThreshold: p.decimalVar("FREE_SHIPPING_THRESHOLD", "75000"),
		ShippingFee:           p.decimalVar("SHIPPING_FEE", "7500"),
		TaxRate:               p.decimalVar("TAX_RATE", "0.16"),

		PaymentDelay:          p.durationVar("PAYMENT_DELAY", 3*time.Second),
		PaymentDeclineNumbers: getEnvList("PAYMENT_DECLINE_NUMBERS"),
		PaymentFailurePercent: p.intVar("PAYMENT_FAILURE_PERCENT", 0),
		PaymentTimeout:        p.durationVar("PAYMENT_TIMEOUT", 10*time.Second),
		PaymentMaxAttempts:    p.intVar("PAYMENT_MAX_ATTEMPTS", 3),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", "admin123"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenTTL:          p.durationVar("TOKEN_TTL", 24*time.Hour),
	}

	if err := cfg.validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	check := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unsupported backend %q", name, value))
	}
	check("CATALOG_BACKEND", c.CatalogBackend, BackendMemory, BackendSQLite)
	check("SESSION_BACKEND", c.SessionBackend, BackendMemory, BackendMongo)
	check("ORDERS_BACKEND", c.OrdersBackend, BackendMemory, BackendPostgres)

	if c.PaymentFailurePercent < 0 || c.PaymentFailurePercent > 100 {
		errs = append(errs, fmt.Errorf("PAYMENT_FAILURE_PERCENT: %d out of range 0-100", c.PaymentFailurePercent))
	}
	if c.PaymentMaxAttempts < 1 {
		errs = append(errs, errors.New("PAYMENT_MAX_ATTEMPTS: must be at least 1"))
	}
	if c.TaxRate.IsNegative() || c.ShippingFee.IsNegative() || c.FreeShippingThreshold.IsNegative() {
		errs = append(errs, errors.New("pricing values must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) durationVar(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) intVar(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) decimalVar(key, def string) decimal.Decimal {
	d, err := decimal.NewFromString(getEnv(key, def))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(def)
	}
	return d
}
