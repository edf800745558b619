// 统计服务：从 ClickHouse 查询聚合统计，对外提供 GET /stats/:code。
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

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/shortlink/analytics"
	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/config"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "analytics: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := clog.New(settings.LogConfig())
	if err != nil {
		return err
	}
	logger = logger.With(clog.String("service", "analytics"))
	logger.Info("starting", clog.String("config", settings.String()))

	meter, err := metrics.New("shortlink")
	if err != nil {
		return err
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	chConn, err := connector.NewClickHouse(settings.ClickHouseConfig(), connector.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := chConn.Connect(startCtx); err != nil {
		return err
	}
	defer chConn.Close()

	stats, err := analytics.NewStatsService(chConn, logger)
	if err != nil {
		return err
	}

	if settings.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(meter.Handler()))
	analytics.NewHandler(stats, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:    settings.AnalyticsAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", clog.String("addr", settings.AnalyticsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down on signal", clog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", clog.Error(err))
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", clog.Error(err))
	}

	logger.Info("stopped")
	return runErr
}
