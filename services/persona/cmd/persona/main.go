package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"personahub/internal/admintoken"
	"personahub/internal/ratelimit"
	"personahub/internal/util"
	"personahub/services/persona/internal/app"
	"personahub/services/persona/internal/config"
	"personahub/services/persona/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, "persona")

	rateWindow, err := config.ParseRateWindow(cfg.RateWindow)
	if err != nil {
		util.Fatal("failed to parse rate window", "err", err)
	}
	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" && cfg.RateLimit > 0 {
		limiter, err = ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "persona", cfg.RateLimit, rateWindow)
		if err != nil {
			util.Fatal("failed to init rate limiter", "err", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		FallbackPath:   cfg.FallbackPath,
		MinioEndpoint:  cfg.MinioEndpoint,
		MinioAccessKey: cfg.MinioAccessKey,
		MinioSecretKey: cfg.MinioSecretKey,
		MinioBucket:    cfg.MinioBucket,
		MinioUseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		Admin:          admintoken.New(cfg.AdminSecret, 24*time.Hour),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("persona server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
