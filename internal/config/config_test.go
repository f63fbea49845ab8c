package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(KeyPostgresURL, "postgres://localhost/shop")
	t.Setenv(KeyJWTSecret, "s3cret")

	cfg, err := Load(KeyPostgresURL, KeyJWTSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("expected 24h token lifetime, got %s", cfg.JWTTTL)
	}
	if cfg.OTPTTL != 10*time.Minute {
		t.Errorf("expected 10m code lifetime, got %s", cfg.OTPTTL)
	}
	if !cfg.DeliveryFee.Equal(decimal.NewFromInt(10)) || !cfg.FreeDeliveryThreshold.Equal(decimal.NewFromInt(250)) {
		t.Errorf("unexpected fee defaults: %s / %s", cfg.DeliveryFee, cfg.FreeDeliveryThreshold)
	}
	if cfg.OrdersTopic != "order.placed" {
		t.Errorf("unexpected topic %s", cfg.OrdersTopic)
	}
	if cfg.Production() {
		t.Error("expected development by default")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %s", cfg.LogLevel)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(KeyPort, "9090")
	t.Setenv(KeyKafkaBrokers, "kafka-1:9092, kafka-2:9092,")
	t.Setenv(KeyAllowedOrigins, "https://shop.example.com,https://admin.example.com")
	t.Setenv(KeyJWTTTL, "2h")
	t.Setenv(KeyDeliveryFee, "15.50")
	t.Setenv(KeyAppEnv, "production")
	t.Setenv(KeyLogLevel, "debug")
	t.Setenv(KeyRedisDB, "3")
	t.Setenv(KeyOTELEnabled, "false")
	t.Setenv(KeyNotifierURL, "http://notifier:8083/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected 9090, got %s", cfg.Port)
	}
	if strings.Join(cfg.KafkaBrokers, "|") != "kafka-1:9092|kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Errorf("expected 2h, got %s", cfg.JWTTTL)
	}
	if !cfg.DeliveryFee.Equal(decimal.RequireFromString("15.5")) {
		t.Errorf("expected 15.50, got %s", cfg.DeliveryFee)
	}
	if !cfg.Production() {
		t.Error("expected production")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug, got %s", cfg.LogLevel)
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.Redis.DB)
	}
	if cfg.OTELEnabled {
		t.Error("expected telemetry disabled")
	}
	if cfg.NotifierURL != "http://notifier:8083" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.NotifierURL)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing required keys", func(t *testing.T) {
		t.Setenv(KeyPostgresURL, "")
		t.Setenv(KeyJWTSecret, "")

		_, err := Load(KeyPostgresURL, KeyJWTSecret)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), KeyPostgresURL) || !strings.Contains(err.Error(), KeyJWTSecret) {
			t.Errorf("expected both keys named, got %v", err)
		}
	})

	t.Run("bad fee", func(t *testing.T) {
		t.Setenv(KeyDeliveryFee, "ten")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("negative threshold", func(t *testing.T) {
		t.Setenv(KeyFreeDeliveryThreshold, "-1")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv(KeyLogLevel, "loud")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("zero token lifetime", func(t *testing.T) {
		t.Setenv(KeyJWTTTL, "0s")
		if _, err := Load(); err == nil {
			t.Error("expected error")
		}
	})
}
