// Package config reads process configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	KeyPort                  = "PORT"
	KeyPostgresURL           = "POSTGRES_URL"
	KeyRedisAddr             = "REDIS_ADDR"
	KeyRedisPassword         = "REDIS_PASSWORD"
	KeyRedisDB               = "REDIS_DB"
	KeyKafkaBrokers          = "KAFKA_BROKERS"
	KeyOrdersTopic           = "ORDERS_TOPIC"
	KeyJWTSecret             = "JWT_SECRET"
	KeyJWTTTL                = "JWT_TTL"
	KeyOTPTTL                = "OTP_TTL"
	KeyAllowedOrigins        = "ALLOWED_ORIGINS"
	KeyAppEnv                = "APP_ENV"
	KeyDeliveryFee           = "DELIVERY_FEE"
	KeyFreeDeliveryThreshold = "FREE_DELIVERY_THRESHOLD"
	KeyShopkeeperUsername    = "SHOPKEEPER_USERNAME"
	KeyShopkeeperPhone       = "SHOPKEEPER_PHONE"
	KeyShopkeeperEmail       = "SHOPKEEPER_EMAIL"
	KeyShopkeeperPassword    = "SHOPKEEPER_PASSWORD"
	KeyNotifierURL           = "NOTIFIER_URL"
	KeyShopkeeperNotifyTo    = "SHOPKEEPER_NOTIFY_TO"
	KeyLogLevel              = "LOG_LEVEL"
	KeyOTLPEndpoint          = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyOTELEnabled           = "OTEL_ENABLED"
)

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Shopkeeper struct {
	Username string
	Phone    string
	Email    string
	Password string
}

type Config struct {
	Port                  string
	PostgresURL           string
	Redis                 Redis
	KafkaBrokers          []string
	OrdersTopic           string
	JWTSecret             string
	JWTTTL                time.Duration
	OTPTTL                time.Duration
	AllowedOrigins        []string
	AppEnv                string
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	Shopkeeper            Shopkeeper
	NotifierURL           string
	ShopkeeperNotifyTo    string
	LogLevel              slog.Level
	OTLPEndpoint          string
	OTELEnabled           bool
}

// Production reports whether the process runs with APP_ENV=production.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func defaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyRedisAddr, "localhost:6379")
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyOrdersTopic, "order.placed")
	v.SetDefault(KeyJWTTTL, "24h")
	v.SetDefault(KeyOTPTTL, "10m")
	v.SetDefault(KeyAllowedOrigins, "*")
	v.SetDefault(KeyAppEnv, "development")
	v.SetDefault(KeyDeliveryFee, "10")
	v.SetDefault(KeyFreeDeliveryThreshold, "250")
	v.SetDefault(KeyShopkeeperUsername, "shopkeeper")
	v.SetDefault(KeyNotifierURL, "http://localhost:8083")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyOTLPEndpoint, "localhost:4317")
	v.SetDefault(KeyOTELEnabled, true)
}

// Load reads the configuration. Every key in required must be set to a
// non-empty value.
func Load(required ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		Port:        v.GetString(KeyPort),
		PostgresURL: v.GetString(KeyPostgresURL),
		Redis: Redis{
			Addr:     v.GetString(KeyRedisAddr),
			Password: v.GetString(KeyRedisPassword),
			DB:       v.GetInt(KeyRedisDB),
		},
		KafkaBrokers:   splitList(v.GetString(KeyKafkaBrokers)),
		OrdersTopic:    v.GetString(KeyOrdersTopic),
		JWTSecret:      v.GetString(KeyJWTSecret),
		JWTTTL:         v.GetDuration(KeyJWTTTL),
		OTPTTL:         v.GetDuration(KeyOTPTTL),
		AllowedOrigins: splitList(v.GetString(KeyAllowedOrigins)),
		AppEnv:         v.GetString(KeyAppEnv),
		Shopkeeper: Shopkeeper{
			Username: v.GetString(KeyShopkeeperUsername),
			Phone:    v.GetString(KeyShopkeeperPhone),
			Email:    v.GetString(KeyShopkeeperEmail),
			Password: v.GetString(KeyShopkeeperPassword),
		},
		NotifierURL:        strings.TrimRight(v.GetString(KeyNotifierURL), "/"),
		ShopkeeperNotifyTo: v.GetString(KeyShopkeeperNotifyTo),
		OTLPEndpoint:       v.GetString(KeyOTLPEndpoint),
		OTELEnabled:        v.GetBool(KeyOTELEnabled),
	}

	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("%s must be a positive duration", KeyJWTTTL)
	}
	if cfg.OTPTTL <= 0 {
		return nil, fmt.Errorf("%s must be a positive duration", KeyOTPTTL)
	}

	var err error
	if cfg.DeliveryFee, err = parseMoney(v, KeyDeliveryFee); err != nil {
		return nil, err
	}
	if cfg.FreeDeliveryThreshold, err = parseMoney(v, KeyFreeDeliveryThreshold); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}

	return cfg, nil
}

func parseMoney(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
