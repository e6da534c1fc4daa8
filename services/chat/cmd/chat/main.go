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

	"personahub/internal/util"
	"personahub/services/chat/internal/analytics"
	"personahub/services/chat/internal/config"
	"personahub/services/chat/internal/server"
	"personahub/services/chat/internal/upstream"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, "chat")

	var publisher *analytics.Publisher
	if cfg.AmqpURL != "" {
		publisher, err = analytics.NewPublisher(cfg.AmqpURL, cfg.AmqpExchange, logger)
		if err != nil {
			util.Fatal("failed to init analytics publisher", "err", err)
		}
		defer publisher.Close()
	}

	httpServer := server.New(server.Config{
		Upstream:  upstream.New(cfg.UpstreamURL),
		Analytics: publisher,
		Logger:    logger,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("chat relay listening", "addr", addr, "upstream", cfg.UpstreamURL)
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
