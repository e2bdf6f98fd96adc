package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gym-batches-go/internal/app"
	"gym-batches-go/internal/config"
	"gym-batches-go/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	log := logger.NewFromEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Critical("app.init: config failed", "err", err)
		os.Exit(1)
	}
	log = logger.NewFromConfig(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	log.Info("app: starting", "env", cfg.Env, "storage", cfg.StorageDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Critical("app.init: init failed", "err", err)
		os.Exit(1)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, srv := range application.Servers() {
		srv := srv
		group.Go(func() error {
			log.Info("http: listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Critical("http: server failed", "addr", srv.Addr, "err", err)
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("app: shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return application.Shutdown(shutdownCtx)
	})

	exitCode := 0
	if err := group.Wait(); err != nil {
		log.Error("app: stopped with error", "err", err)
		exitCode = 1
	}

	if err := application.Close(); err != nil {
		log.Error("app: close failed", "err", err)
		exitCode = 1
	}

	if exitCode == 0 {
		log.Info("app: stopped")
		return
	}

	os.Exit(exitCode)
}
