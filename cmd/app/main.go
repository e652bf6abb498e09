// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"captive-portal/internal/config"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/adapter"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/infra/adapters/network"
	payAdapters "captive-portal/internal/infra/adapters/payment"
	"captive-portal/internal/infra/api"
	pg "captive-portal/internal/infra/db/postgres"
	"captive-portal/internal/infra/logging"
	"captive-portal/internal/infra/metrics"
	red "captive-portal/internal/infra/redis"
	"captive-portal/internal/infra/sched"
	"captive-portal/internal/infra/worker"
	"captive-portal/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway without credentials, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	tm := pg.NewTxManager(pool)
	transactionRepo := pg.NewTransactionRepo(pool)
	accessCodeRepo := pg.NewAccessCodeRepo(pool)
	var exclusionRepo repository.ExclusionRepository = pg.NewExclusionRepo(pool)

	// ---- Redis (optional) ----
	var (
		locker  red.Locker
		limiter api.Limiter
	)
	if cfg.Redis.Enabled() {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		exclusionRepo = pg.NewExclusionRepoCacheDecorator(exclusionRepo, redisClient, cfg.Redis.TTL, logger)
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis disabled: no exclusion cache, sweep lock or rate limiting")
	}

	// ---- Adapters ----
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	var disconnector adapter.Disconnector
	if cfg.Network.DisconnectURL != "" {
		disconnector, err = network.NewRouterClient(cfg.Network, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("router client")
		}
	} else {
		logger.Warn().Msg("network.disconnect_url not set; disconnects are logged only")
		disconnector = network.NewNoopDisconnector(logger)
	}

	// ---- Domain ----
	catalog, err := model.NewCatalog(packages(cfg.Packages))
	if err != nil {
		logger.Fatal().Err(err).Msg("package catalog")
	}
	gen, err := usecase.NewCodeGenerator(cfg.Codes.Alphabet, cfg.Codes.Length)
	if err != nil {
		logger.Fatal().Err(err).Msg("code generator")
	}

	// ---- Use cases ----
	transactionUC := usecase.NewTransactionUseCase(transactionRepo, exclusionRepo, gateway, disconnector, tm, catalog, logger, cfg.Runtime.Dev)
	accessCodeUC := usecase.NewAccessCodeUseCase(accessCodeRepo, disconnector, gen, tm, catalog, logger, cfg.Runtime.Dev)
	accessUC := usecase.NewAccessUseCase(exclusionRepo, transactionRepo, logger)
	exclusionUC := usecase.NewExclusionUseCase(exclusionRepo, logger)

	// ---- Workers ----
	workers := worker.NewPool(cfg.Sweeper.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()

	expiry := sched.NewExpiryWorker(cfg.Sweeper.Interval, transactionUC, accessCodeUC, workers, locker, logger)
	go func() { _ = expiry.Run(ctx) }()

	reconciler := sched.NewPaymentReconciler(transactionUC, transactionRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.BatchSize, logger)
	go reconciler.Start(ctx)
	// Catch up on intents left pending across a restart without waiting a full interval.
	if err := workers.Submit(func(ctx context.Context) error { reconciler.Tick(ctx); return nil }); err != nil {
		logger.Warn().Err(err).Msg("startup reconcile not scheduled")
	}

	// ---- HTTP ----
	srv := api.NewServer(transactionUC, accessCodeUC, accessUC, exclusionUC,
		api.NewAuthenticator(cfg.Auth.JWTSecret), limiter, pool.Ping,
		api.Options{
			RequestTimeout:     cfg.HTTP.RequestTimeout,
			RateLimit:          cfg.HTTP.RateLimit,
			RateWindow:         cfg.HTTP.RateWindow,
			DeferredActivation: cfg.Codes.DeferredActivation,
		}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	m := cfg.Payment.MoMo
	noCreds := m.APIUser == "" || m.APIKey == "" || m.SubscriptionKey == ""
	if cfg.Payment.Provider == "noop" || (cfg.Runtime.Dev && noCreds) {
		logger.Warn().Msg("using noop payment gateway; every payment succeeds")
		return payAdapters.NewNoopPaymentGateway(), nil
	}
	return payAdapters.NewMoMoGateway(m, logger)
}

func packages(cfgs []config.PackageConfig) []model.Package {
	if len(cfgs) == 0 {
		return model.DefaultPackages()
	}
	out := make([]model.Package, 0, len(cfgs))
	for _, p := range cfgs {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		out = append(out, model.Package{ID: p.ID, Name: name, DurationHours: p.DurationHours, Price: p.Price})
	}
	return out
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}
