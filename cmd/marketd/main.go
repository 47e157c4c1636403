package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"moneymarket/config"
	"moneymarket/core"
	"moneymarket/observability/logging"
	"moneymarket/services/marketd"
	"moneymarket/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to marketd config (.toml or .yaml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	env := cfg.Environment
	if fromEnv := strings.TrimSpace(os.Getenv("MARKET_ENV")); fromEnv != "" {
		env = fromEnv
	}
	logger := logging.Setup("marketd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	hostCfg, err := cfg.HostConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	host, err := core.NewHost(db, hostCfg)
	if err != nil {
		log.Fatalf("open market: %v", err)
	}
	host.SetLogger(logger)

	limiter := marketd.NewRateLimiter(marketd.RateLimit{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           marketd.NewServer(host, limiter, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("marketd listening",
			"addr", cfg.ListenAddress,
			"contract", host.Contract(),
			"receipt_token", host.ReceiptToken(),
			"height", host.Height())
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err)
			_ = server.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Storage {
	case config.StorageBolt:
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "market.db"), nil)
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "market"))
	}
}
