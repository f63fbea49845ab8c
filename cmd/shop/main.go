package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/shopfront/internal/accounts"
	"github.com/joao-fontenele/shopfront/internal/auth"
	"github.com/joao-fontenele/shopfront/internal/catalog"
	"github.com/joao-fontenele/shopfront/internal/config"
	"github.com/joao-fontenele/shopfront/internal/database"
	"github.com/joao-fontenele/shopfront/internal/messaging"
	"github.com/joao-fontenele/shopfront/internal/orders"
	"github.com/joao-fontenele/shopfront/internal/telemetry"
)

const (
	serviceName    = "shop"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.KeyPostgresURL, config.KeyJWTSecret)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, telemetry.TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := database.Open(ctx, cfg.PostgresURL, database.PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	orderMetrics, err := telemetry.NewOrderMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	engineOpts := []orders.EngineOption{
		orders.WithFeePolicy(orders.FeePolicy{Fee: cfg.DeliveryFee, Threshold: cfg.FreeDeliveryThreshold}),
		orders.WithMetrics(orderMetrics),
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrdersTopic)
		defer func() { _ = producer.Close() }()
		engineOpts = append(engineOpts, orders.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	orderRepo := orders.NewOrderRepository(db)
	engine := orders.NewEngine(orders.NewTxRunner(db), orderRepo, logger, engineOpts...)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	accountService := accounts.NewService(
		accounts.NewUserRepository(db),
		accounts.NewRedisCodeStore(rdb),
		tokens,
		logger,
		accounts.WithOTPTTL(cfg.OTPTTL),
		accounts.WithEchoCodes(!cfg.Production()),
	)

	if cfg.Shopkeeper.Phone != "" {
		err := accountService.EnsureShopkeeper(ctx, accounts.ShopkeeperAccount{
			Username: cfg.Shopkeeper.Username,
			Email:    cfg.Shopkeeper.Email,
			Phone:    cfg.Shopkeeper.Phone,
			Password: cfg.Shopkeeper.Password,
		})
		if err != nil {
			logger.Error("failed to seed shopkeeper account", "error", err)
			os.Exit(1)
		}
	}

	mux := routes(handlers{
		accounts: accounts.NewHandler(accountService, logger),
		catalog:  catalog.NewHandler(catalog.NewItemRepository(db), logger),
		orders:   orders.NewHandler(engine, orderRepo, logger),
		auth:     auth.NewMiddleware(tokens, logger),
		metrics:  metricsHandler,
		health:   healthHandler(logger, db.PingContext, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	})

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(otelhttp.NewHandler(mux, serviceName, otelhttp.WithSpanNameFormatter(telemetry.SpanName))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info("starting shop service", "port", cfg.Port, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func healthHandler(logger *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, body := http.StatusOK, map[string]string{"status": "ok"}
		for _, check := range checks {
			if err := check(ctx); err != nil {
				logger.Error("health check failed", "error", err)
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
