package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/breaker"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/config"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/db"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/events"
	grpcserver "github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/grpc"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/history"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/httpapi"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/idempotency"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/limits"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/logging"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/memory"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/recipient"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("transfer engine failed", zap.Error(err))
	}
}

// app holds everything main wires together.
type app struct {
	deps    transfer.Dependencies
	history httpapi.HistoryReader
	health  map[string]httpapi.HealthCheck
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{health: make(map[string]httpapi.HealthCheck)}
	defer a.close()

	if err := a.setupStorage(ctx, cfg, logger); err != nil {
		return err
	}
	if err := a.setupGuard(ctx, cfg); err != nil {
		return err
	}
	if err := a.setupCollaborators(ctx, cfg, logger); err != nil {
		return err
	}

	svc := transfer.NewService(a.deps, transfer.Config{
		Currency:       cfg.Engine.Currency,
		Scale:          cfg.Engine.Scale,
		ReserveTimeout: cfg.Engine.ReserveTimeout,
		ExecuteTimeout: cfg.Engine.ExecuteTimeout,
		NotifyTimeout:  cfg.Engine.NotifyTimeout,
	}, transfer.WithLogger(logger.Named("transfer")))
	logger.Info("transfer service initialized",
		zap.String("storage", cfg.Engine.Storage),
		zap.String("guard", cfg.Engine.Guard),
		zap.String("limits", cfg.Limits.Source),
	)

	handler := httpapi.NewHandler(httpapi.Options{
		Service:    svc,
		History:    a.history,
		Health:     a.health,
		AdminToken: cfg.HTTP.AdminToken,
		Currency:   cfg.Engine.Currency,
		Scale:      cfg.Engine.Scale,
		Logger:     logger.Named("http"),
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Port != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
		if err != nil {
			return fmt.Errorf("failed to listen on port %s: %w", cfg.GRPC.Port, err)
		}
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(grpcserver.LoggingInterceptor(logger.Named("grpc"))))
		grpcserver.RegisterTransferEngineServer(grpcServer, grpcserver.NewServer(svc, cfg.Engine.Scale, logger.Named("grpc")))

		go func() {
			logger.Info("gRPC server starting", zap.String("addr", lis.Addr().String()))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server failed: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error, shutting down", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	// in-flight event and history deliveries
	svc.Wait()

	logger.Info("transfer engine stopped")
	return nil
}

// setupStorage wires the ledger, usage, transfer and directory stores
// together with the limit policies.
func (a *app) setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var (
		usage     domain.UsageStore
		directory domain.Directory
		policies  domain.PolicySource = limits.StaticPolicies(cfg.Limits.Policies)
	)

	switch cfg.Engine.Storage {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.Postgres.URL, db.PoolConfig{
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return fmt.Errorf("failed to create database pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info("database connection pool initialized")

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		tm := db.NewTransactionManager(pool.Pool, logger.Named("db"))
		a.deps.TxManager = tm
		a.deps.Ledger = db.NewLedgerRepository(pool.Pool, tm)
		a.deps.Transfers = db.NewTransferRepository(pool.Pool)
		usage = db.NewUsageRepository(pool.Pool)
		directory = db.NewDirectoryRepository(pool.Pool)
		a.health["postgres"] = pool.Ping

		if cfg.Limits.Source == config.LimitsPostgres {
			reloading := limits.NewReloadingPolicies(db.NewPolicyRepository(pool.Pool), cfg.Limits.Policies, logger.Named("limits"))
			if err := reloading.Refresh(ctx); err != nil {
				logger.Warn("initial limit policy load failed, using configured policies", zap.Error(err))
			}
			go reloading.Run(ctx, cfg.Limits.RefreshInterval)
			policies = reloading
		}
	default:
		ledger := memory.NewLedger()
		dir := memory.NewDirectory()
		for _, d := range demoAccounts() {
			ledger.Put(*d.Account)
			dir.Put(d.Profile)
			logger.Info("demo account created",
				zap.String("account_id", d.Account.ID.String()),
				zap.String("phone", d.Profile.Phone),
				zap.String("email", d.Profile.Email),
			)
		}
		a.deps.TxManager = memory.NewTransactionManager()
		a.deps.Ledger = ledger
		a.deps.Transfers = memory.NewTransferRepository()
		usage = memory.NewUsageStore()
		directory = dir
	}

	a.deps.Limits = limits.NewTracker(usage, policies)
	a.deps.Resolver = recipient.NewResolver(directory)
	return nil
}

func (a *app) setupGuard(ctx context.Context, cfg *config.Config) error {
	if cfg.Engine.Guard != config.BackendRedis {
		a.deps.Guard = idempotency.NewMemoryGuard(cfg.Engine.LeaseTTL)
		return nil
	}

	client, err := idempotency.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { client.Close() })
	a.deps.Guard = idempotency.NewRedisGuard(client, cfg.Engine.LeaseTTL)
	a.health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return nil
}

// setupCollaborators connects the optional event publisher and history store.
// Both sit behind circuit breakers.
func (a *app) setupCollaborators(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.RabbitMQ.URL != "" {
		publisher, err := events.NewRabbitMQPublisher(events.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
		}, logger.Named("events"))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close event publisher", zap.Error(err))
			}
		})
		a.deps.Notifier = breaker.NewNotifier(publisher, breaker.New("rabbitmq", breaker.DefaultConfig(), logger))
		logger.Info("event publishing enabled", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	if cfg.ClickHouse.Host != "" {
		client, err := history.NewClickHouseClient(ctx, history.Config{
			Addr:        cfg.ClickHouse.Host,
			Database:    cfg.ClickHouse.Database,
			User:        cfg.ClickHouse.User,
			Password:    cfg.ClickHouse.Password,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { client.Close() })
		if err := client.EnsureSchema(ctx); err != nil {
			return err
		}

		repo := history.NewRepository(client)
		a.deps.History = breaker.NewHistoryWriter(repo, breaker.New("clickhouse", breaker.DefaultConfig(), logger))
		a.history = repo
		a.health["clickhouse"] = func(ctx context.Context) error { return client.Conn().Ping(ctx) }
		logger.Info("transfer history enabled", zap.String("host", cfg.ClickHouse.Host))
	}
	return nil
}

type demoAccount struct {
	Account *domain.Account
	Profile domain.Profile
}

// demoAccounts returns the accounts available in memory mode.
func demoAccounts() []demoAccount {
	people := []struct {
		name, email, phone, wallet string
	}{
		{"Amine Trabelsi", "amine@dinarflow.tn", "20123456", "2500"},
		{"Sarah Ben Ali", "sarah@dinarflow.tn", "55987654", "1000"},
		{"Youssef Gharbi", "youssef@dinarflow.tn", "98765432", "150"},
	}

	out := make([]demoAccount, 0, len(people))
	for _, p := range people {
		acc := domain.NewAccount(uuid.New(), decimal.RequireFromString(p.wallet))
		acc.BankLinked = true
		acc.BankBalance = decimal.NewFromInt(5000)
		out = append(out, demoAccount{
			Account: acc,
			Profile: domain.Profile{
				AccountID:   acc.ID,
				Email:       p.email,
				Phone:       p.phone,
				DisplayName: p.name,
				Status:      domain.AccountStatusActive,
			},
		})
	}
	return out
}
