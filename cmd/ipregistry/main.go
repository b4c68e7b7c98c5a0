package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipregistry/internal/config"
	"github.com/kailas-cloud/ipregistry/internal/db"
	dbRedis "github.com/kailas-cloud/ipregistry/internal/db/redis"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	logpkg "github.com/kailas-cloud/ipregistry/internal/logger"
	"github.com/kailas-cloud/ipregistry/internal/metrics"
	accessrepo "github.com/kailas-cloud/ipregistry/internal/repository/access"
	"github.com/kailas-cloud/ipregistry/internal/repository/corpuscache"
	iprepo "github.com/kailas-cloud/ipregistry/internal/repository/ip"
	ledgerrepo "github.com/kailas-cloud/ipregistry/internal/repository/ledger"
	chiTransport "github.com/kailas-cloud/ipregistry/internal/transport/chi"
	"github.com/kailas-cloud/ipregistry/internal/transport/ethereum"
	accessuc "github.com/kailas-cloud/ipregistry/internal/usecase/access"
	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
	healthuc "github.com/kailas-cloud/ipregistry/internal/usecase/health"
	ipuc "github.com/kailas-cloud/ipregistry/internal/usecase/ip"
	"github.com/kailas-cloud/ipregistry/internal/version"
)

// ledger is the read side every driver provides.
type ledger interface {
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, index int) (domip.Record, error)
	Description(ctx context.Context, index int) (string, error)
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ipregistry API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("ledger_driver", cfg.Ledger.Driver),
		zap.Float64("similarity_threshold", cfg.Similarity.Threshold),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterGateMetrics()

	led, corpus, writer, closeLedger, err := buildLedger(ctx, &cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to open ledger", zap.Error(err))
	}
	defer closeLedger()

	gate, err := dedup.New(cfg.Similarity.Threshold, logger.Named("dedup"),
		dedup.WithParallelism(cfg.Similarity.Parallelism))
	if err != nil {
		logger.Fatal("Invalid similarity settings", zap.Error(err))
	}

	prefix := cfg.Storage.KeyPrefix
	ipSvc := ipuc.New(iprepo.New(store, prefix), led, corpus, gate, logger).
		WithScanParallelism(cfg.Similarity.ScanParallelism)
	if writer != nil {
		ipSvc.WithWriter(writer)
	}
	accessSvc := accessuc.New(accessrepo.New(store, prefix), led, logger)
	healthSvc := healthuc.New(store, led)

	server := chiTransport.NewServer(ipSvc, accessSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(corsMiddleware(cfg.HTTP.CORSOrigins))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildLedger opens the configured ledger driver and assembles the gate corpus:
// ledger -> cached (ethereum only). writer is nil when registrations stay off-ledger.
func buildLedger(
	ctx context.Context, cfg *config.Config, store db.Store, logger *zap.Logger,
) (led ledger, corpus dedup.Corpus, writer ipuc.LedgerWriter, closeFn func(), err error) {
	closeFn = func() {}

	switch cfg.Ledger.Driver {
	case config.LedgerStore:
		s := ledgerrepo.NewStore(store, cfg.Storage.KeyPrefix)
		return s, s, s, closeFn, nil

	case config.LedgerEthereum:
		lc := cfg.Ledger
		ethCfg := &ethereum.Config{
			RPCURL:          lc.RPCURL,
			ContractAddress: lc.ContractAddress,
			ABIPath:         lc.ABIPath,
			Methods: ethereum.Methods{
				Count:           lc.Methods.Count,
				Details:         lc.Methods.Details,
				Register:        lc.Methods.Register,
				RegisteredEvent: lc.Methods.RegisteredEvent,
			},
			ChainID:           lc.ChainID,
			RequestsPerSecond: lc.RateLimitRPS,
			Burst:             lc.RateLimitBurst,
			CallTimeout:       time.Duration(lc.CallTimeoutSec) * time.Second,
			MineTimeout:       time.Duration(lc.MineTimeoutSec) * time.Second,
			Logger:            logger.Named("ethereum"),
		}
		if lc.WriteEnabled {
			ethCfg.PrivateKey = lc.PrivateKey
		}

		eth, err := ethereum.Dial(ctx, ethCfg)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("dial ethereum ledger: %w", err)
		}
		logger.Info("Ledger bound",
			zap.String("contract", eth.Address()),
			zap.Bool("write_enabled", lc.WriteEnabled),
		)

		corpus = eth
		if cfg.Similarity.CacheDescriptions {
			corpus = corpuscache.New(
				eth, store, cfg.Storage.KeyPrefix, eth.Address(),
				time.Duration(cfg.Similarity.CacheTTLSec)*time.Second,
				metrics.CorpusCacheTotal, logger,
			)
		}
		if lc.WriteEnabled {
			writer = eth
		}
		return eth, corpus, writer, eth.Close, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
}
