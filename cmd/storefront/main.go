package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/config"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/fjod/go_storefront/internal/shop"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("storefront stopped with error", zap.Error(err))
	}
	zlog.Info("storefront stopped")
}

func run(cfg config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]h.HealthCheck)

	products, err := openCatalog(cfg, zlog)
	if err != nil {
		return err
	}
	defer products.Close()

	sessionRepo, closeSessions, err := openSessions(ctx, cfg, zlog, checks)
	if err != nil {
		return err
	}
	defer closeSessions()

	sessionCache, closeCache, err := openCache(ctx, cfg, zlog, checks)
	if err != nil {
		return err
	}
	defer closeCache()

	orderRepo, closeOrders, err := openOrders(cfg, zlog, checks)
	if err != nil {
		return err
	}
	defer closeOrders()

	simulator := payment.NewMobileMoneySimulator(payment.MobileMoneyConfig{
		Delay:          cfg.PaymentDelay,
		DeclineNumbers: cfg.PaymentDeclineNumbers,
		FailurePercent: cfg.PaymentFailurePercent,
	})
	resilience := payment.DefaultResilience()
	resilience.AttemptTimeout = cfg.PaymentTimeout
	resilience.MaxAttempts = uint(cfg.PaymentMaxAttempts)
	gateway := payment.NewResilient(simulator, resilience, zlog.Named("payment"))

	pricing := cart.PricingPolicy{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
		TaxRate:               cfg.TaxRate,
	}
	sessions := session.NewService(sessionRepo, sessionCache, zlog.Named("session"))
	svc := shop.NewService(sessions, products, orderRepo, gateway, pricing, zlog.Named("shop"))

	issuer, err := newIssuer(cfg, zlog)
	if err != nil {
		return err
	}

	bg, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	done := startEventPipeline(bg, cfg, orderRepo, zlog)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(h.RouterConfig{
			Catalog:        products,
			Shop:           svc,
			Issuer:         issuer,
			Authorizer:     issuer,
			HealthChecks:   checks,
			Log:            zlog.Named("http"),
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		zlog.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		zlog.Info("grpc health server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		zlog.Info("shutting down storefront")
	case runErr = <-errCh:
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	cancelBg()
	<-done
	return runErr
}

func openCatalog(cfg config.Config, zlog *zap.Logger) (catalog.Store, error) {
	if cfg.CatalogBackend != config.BackendSQLite {
		zlog.Info("using in-memory catalog")
		return catalog.NewMemoryStore(catalog.SeedProducts()), nil
	}

	store, err := catalog.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(); err != nil {
		store.Close()
		return nil, err
	}
	zlog.Info("using sqlite catalog", zap.String("path", cfg.SQLitePath))
	return store, nil
}

func openSessions(ctx context.Context, cfg config.Config, zlog *zap.Logger, checks map[string]h.HealthCheck) (session.Repository, func(), error) {
	if cfg.SessionBackend != config.BackendMongo {
		zlog.Info("using in-memory sessions")
		return session.NewMemoryRepository(), func() {}, nil
	}

	db, err := session.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, nil, err
	}
	repo := session.NewMongoRepository(db, cfg.SessionTTL)
	if err := repo.CreateIndexes(ctx); err != nil {
		_ = db.Client().Disconnect(context.Background())
		return nil, nil, err
	}
	checks["mongo"] = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }

	zlog.Info("connected to MongoDB", zap.String("database", cfg.MongoDBName))
	return repo, func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			zlog.Warn("mongo disconnect failed", zap.Error(err))
		}
	}, nil
}

func openCache(ctx context.Context, cfg config.Config, zlog *zap.Logger, checks map[string]h.HealthCheck) (session.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return session.NopCache{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

	zlog.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	return session.NewRedisCache(client, cfg.CacheTTL), func() { client.Close() }, nil
}

func openOrders(cfg config.Config, zlog *zap.Logger, checks map[string]h.HealthCheck) (orders.Repository, func(), error) {
	if cfg.OrdersBackend != config.BackendPostgres {
		zlog.Info("using in-memory orders")
		return orders.NewMemoryRepository(), func() {}, nil
	}

	repo, err := orders.NewPostgresRepository(&orders.Credentials{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := repo.RunMigrations(); err != nil {
		repo.Close()
		return nil, nil, err
	}
	checks["postgres"] = repo.Ping

	zlog.Info("connected to PostgreSQL", zap.String("host", cfg.PostgresHost), zap.String("database", cfg.PostgresDB))
	return repo, func() { repo.Close() }, nil
}

// startEventPipeline publishes order events to Kafka and consumes them for
// customer notifications. Without brokers the outbox simply accumulates.
// The returned channel closes once both loops have exited.
func startEventPipeline(ctx context.Context, cfg config.Config, repo orders.EventSource, zlog *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if len(cfg.KafkaBrokers) == 0 {
		zlog.Info("KAFKA_BROKERS not set, order events are not published")
		close(done)
		return done
	}

	writer := orders.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...)
	poller := orders.NewOutboxPoller(repo, writer, zlog.Named("outbox"))

	reader := orders.NewKafkaReader(cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
	notifier := orders.NewNotifier(reader, orders.LogNotifier(zlog.Named("notify")), zlog.Named("notifier"))

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
		if err := writer.Close(); err != nil {
			zlog.Warn("kafka writer close failed", zap.Error(err))
		}
	}()
	go func() {
		defer close(done)
		notifier.Run(ctx)
		if err := notifier.Close(); err != nil {
			zlog.Warn("kafka reader close failed", zap.Error(err))
		}
		<-pollerDone
	}()

	zlog.Info("order event pipeline started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	return done
}

func newIssuer(cfg config.Config, zlog *zap.Logger) (*auth.Issuer, error) {
	hash := cfg.AdminPasswordHash
	if hash == "" {
		var err error
		if hash, err = auth.HashPassword(cfg.AdminPassword); err != nil {
			return nil, err
		}
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = []byte(hex.EncodeToString(buf))
		zlog.Warn("JWT_SECRET not set, using a random secret; admin tokens will not survive a restart")
	}

	return auth.NewIssuer(auth.IssuerConfig{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Secret:       secret,
		TTL:          cfg.TokenTTL,
	})
}
