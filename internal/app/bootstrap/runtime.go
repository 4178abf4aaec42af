package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	authorityadapter "github.com/threadlens/entitlement-service/internal/adapters/authority"
	cacheadapter "github.com/threadlens/entitlement-service/internal/adapters/cache"
	eventadapter "github.com/threadlens/entitlement-service/internal/adapters/events"
	httpadapter "github.com/threadlens/entitlement-service/internal/adapters/http"
	"github.com/threadlens/entitlement-service/internal/adapters/postgres"
	"github.com/threadlens/entitlement-service/internal/application"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	refresh    *eventadapter.RefreshWorker
	poller     *eventadapter.CheckoutPoller
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping entitlement service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	authority := authorityadapter.NewClient(authorityadapter.Config{
		BaseURL:        cfg.AuthorityBaseURL,
		HTTPClient:     &http.Client{Timeout: cfg.AuthorityTimeout},
		MaxAttempts:    cfg.AuthorityMaxAttempts,
		InitialBackoff: cfg.AuthorityInitialBackoff,
		Logger:         logger,
	})

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			StatusCacheTTL:         cfg.StatusCacheTTL,
			SubscriptionStaleAfter: cfg.SubscriptionStaleAfter,
			TrialDuration:          cfg.TrialDuration,
			LedgerCap:              cfg.LedgerCap,
			CheckoutBaseURL:        cfg.CheckoutBaseURL,
		},
		Fast:      cacheadapter.NewRedisStateStore(redisClient),
		Durable:   postgres.NewStore(pool),
		Ledger:    cacheadapter.NewRedisUsageLedger(redisClient),
		Authority: authority,
		Publisher: eventadapter.NewLoggingPublisher(logger),
		Logger:    logger,
	})

	poller := eventadapter.NewCheckoutPoller(svc, cfg.BurstInterval, cfg.BurstDeadline, logger)
	svc.SetWatcher(poller)

	readyCheck := func(ctx context.Context) error {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	}

	handler := httpadapter.NewHandler(svc, readyCheck)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	refresh := eventadapter.NewRefreshWorker(svc, cfg.RefreshInterval, logger)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		refresh:    refresh,
		poller:     poller,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.poller.Bind(ctx)

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("activation refresh worker starting")
	r.refresh.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
