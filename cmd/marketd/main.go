package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/core/events"
	"nftmarket/core/genesis"
	"nftmarket/gateway/middleware"
	"nftmarket/gateway/routes"
	"nftmarket/native/common"
	"nftmarket/observability/logging"
	telemetry "nftmarket/observability/otel"
	"nftmarket/rpc"
	"nftmarket/storage"
)

const pruneInterval = 10 * time.Minute

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Override the genesis file from the config")
	allowMigrate := flag.Bool("allow-migrate", false, "Permit opening state written by an older schema version")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, *genesisFlag, *allowMigrate); err != nil {
		slog.Error("marketd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, genesisOverride string, allowMigrate bool) error {
	logger := logging.Setup("marketd", cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	stdLogger := log.New(os.Stdout, "marketd ", log.LstdFlags|log.Lmsgprefix)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("marketd", cfg.Environment))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	genesisPath := strings.TrimSpace(genesisOverride)
	if genesisPath == "" {
		genesisPath = cfg.GenesisFile
	}
	spec, err := genesis.LoadGenesisSpec(genesisPath)
	if err != nil {
		return err
	}
	contract, err := spec.Contract()
	if err != nil {
		return err
	}

	db, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	host, err := core.NewHost(db, contract, core.HostOptions{
		ChainID:      spec.ChainID,
		Pauses:       common.NewPauseSet(cfg.Market.PausedModules),
		Stream:       events.NewStream(),
		Logger:       logger,
		AllowMigrate: allowMigrate || cfg.Market.AllowMigrate,
	})
	if err != nil {
		return fmt.Errorf("open host: %w", err)
	}
	applied, err := genesis.Apply(context.Background(), host, spec)
	if err != nil {
		return err
	}
	logger.Info("contract ready",
		slog.String("contract", contract.Address()),
		slog.Bool("genesis_applied", applied),
		slog.Uint64("height", host.Height()))

	idem, err := rpc.OpenIdempotencyStore(cfg.Idempotency.Driver, cfg.IdempotencyDSN(), time.Duration(cfg.Idempotency.TTLSeconds)*time.Second)
	if err != nil {
		return err
	}
	defer idem.Close()

	secret := cfg.JWTSecret()
	if cfg.Auth.Enabled && secret == "" {
		return errors.New("auth enabled but no HMAC secret configured")
	}
	authCfg := middleware.AuthConfig{
		Enabled:        cfg.Auth.Enabled,
		HMACSecret:     secret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		AllowAnonymous: cfg.Auth.AnonymousQueries,
		ClockSkew:      time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
	}
	if cfg.Auth.AnonymousQueries {
		authCfg.OptionalPaths = routes.AnonymousPaths
	}
	if !cfg.Auth.Enabled {
		logger.Warn("authentication disabled; trusting " + middleware.HeaderSender)
	}

	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for key, limit := range cfg.RateLimits {
		limits[key] = middleware.RateLimit{RequestsPerMinute: limit.RequestsPerMinute, Burst: limit.Burst}
	}

	server := rpc.NewServer(host,
		rpc.WithIdempotencyStore(idem),
		rpc.WithLogger(logger),
		rpc.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes))
	handler, err := routes.New(routes.Config{
		Server:        server,
		Authenticator: middleware.NewAuthenticator(authCfg, stdLogger),
		RateLimiter:   middleware.NewRateLimiter(limits, stdLogger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: "marketd",
			LogRequests: cfg.Environment != "prod",
			Enabled:     true,
		}, stdLogger),
		ServiceName: "marketd",
	})
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: seconds(cfg.HTTP.ReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.HTTP.ReadTimeout),
		WriteTimeout:      seconds(cfg.HTTP.WriteTimeout),
		IdleTimeout:       seconds(cfg.HTTP.IdleTimeout),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pruneLoop(ctx, idem, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", httpServer.Addr))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStorage(cfg *config.Config) (storage.Database, error) {
	path := cfg.StoragePath()
	switch cfg.Storage.Backend {
	case "mem":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(path, nil)
	default:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
		return storage.NewLevelDB(path)
	}
}

func pruneLoop(ctx context.Context, idem *rpc.IdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := idem.Prune(ctx)
			if err != nil {
				logger.Warn("idempotency prune failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency records pruned", slog.Int64("removed", removed))
			}
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
