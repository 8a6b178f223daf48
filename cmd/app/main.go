package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authentik-admin/internal/app"
	"authentik-admin/internal/config"
	"authentik-admin/internal/handler"
	"authentik-admin/internal/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, envErr := config.LoadConfig()

	logger := app.NewLogger(cfg.LogLevel)
	if envErr != nil {
		logger.Warnf(".env not found: %v", envErr)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, m)
	if err != nil {
		logger.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	a.InitialRefresh(ctx)

	scheduler, err := a.StartRefreshSchedule(cfg.DirectoryRefreshSchedule)
	if err != nil {
		logger.Fatalf("Scheduler setup failed: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(handler.RequestMiddleware(logger, m))

	handler.RegisterHandlers(e, handler.NewAPIHandler(a.Accounts, a.Settings, logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":            "ok",
			"directory_records": a.Cache.Len(),
		})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down...")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}

	logger.Info("Server exited")
}
