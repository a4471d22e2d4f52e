package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k-weiss/tokenpool/internal/api"
	"github.com/k-weiss/tokenpool/internal/auth"
	"github.com/k-weiss/tokenpool/internal/config"
	"github.com/k-weiss/tokenpool/internal/journal"
	"github.com/k-weiss/tokenpool/internal/pool"
	"github.com/k-weiss/tokenpool/internal/remote"
	"github.com/k-weiss/tokenpool/internal/sweeper"
)

func main() {
	cfgPath := flag.String("config", "", "path to tokenpool.yaml")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	if cfg.APIKey == "" {
		logger.Warn("no API key configured, running in open access mode")
	}

	jnl, err := journal.Open(cfg.JournalPath, logger)
	if err != nil {
		logger.Error("open journal", "error", err)
		os.Exit(1)
	}
	defer jnl.Close()

	rc := remote.New(cfg.Remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rc.Ping(ctx); err != nil {
		logger.Warn("remote service unreachable at startup", "url", cfg.Remote.BaseURL, "error", err)
	} else {
		logger.Info("remote service connection OK", "url", cfg.Remote.BaseURL)
	}

	sessionPool := pool.New(cfg.Pool, pool.Options{
		NewAuthenticator: func() *auth.Authenticator {
			return auth.New(rc, cfg.Pool.SessionLifetime(), cfg.Pool.ExpiryMargin())
		},
		Recorder: jnl,
		Logger:   logger,
	})

	if cfg.Pool.PrewarmCount > 0 {
		created := sessionPool.Prewarm(ctx, cfg.Pool.PrewarmCount)
		logger.Info("pool prewarmed", "requested", cfg.Pool.PrewarmCount, "created", created)
	}

	swp := sweeper.New(sessionPool, cfg.Pool.SweepInterval(), logger)
	go swp.Run(ctx)

	srv := api.NewServer(cfg, sessionPool, jnl, logger)

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // prewarm can run many handshakes
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: stop accepting work, then drain and log out the pool.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigCh
		logger.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		sessionPool.CloseAll(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Listen)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
}
