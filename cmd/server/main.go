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

	"github.com/gin-gonic/gin"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/api"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/auth"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/bootstrap"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/config"
)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init runtime: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Errorf("failed to flush storage: %v", err)
		}
	}()

	authProvider, err := auth.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init auth: %v", err)
	}

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	app := api.NewApp(logger, rt.Store, rt.Orchestrator, rt.Metrics)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(app, authProvider),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server running on %s (storage=%s, auth=%s, locks=%s)", cfg.HTTPAddr, cfg.DBType, cfg.AuthMode, cfg.LockBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SyncHTTPTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
