// 短链接服务：对外提供 POST /shorten 与 GET /:code。
//
// 启动顺序：配置 -> 日志 -> 连接器 -> WorkerID 租约 -> ID 生成器 ->
// 事件发布器 -> HTTP。租约丢失时立即停止服务并以非零码退出，
// 避免两个实例使用同一 WorkerID 生成重复 ID。
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
	"github.com/ceyewan/shortlink/idgen"
	"github.com/ceyewan/shortlink/metrics"
	"github.com/ceyewan/shortlink/shortener"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shortener: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	if err := settings.RequirePG(); err != nil {
		return err
	}

	logger, err := clog.New(settings.LogConfig())
	if err != nil {
		return err
	}
	logger = logger.With(clog.String("service", "shortener"))
	logger.Info("starting", clog.String("config", settings.String()))

	meter, err := metrics.New("shortlink")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ---- 连接器 ----

	redisConn, err := connector.NewRedis(settings.RedisConfig(), connector.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := redisConn.Connect(ctx); err != nil {
		return err
	}
	defer redisConn.Close()

	pgConn, err := connector.NewPostgreSQL(settings.PostgresConfig(), connector.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := pgConn.Connect(ctx); err != nil {
		return err
	}
	defer pgConn.Close()

	repo, err := shortener.NewRepository(pgConn.GetClient(), logger)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(); err != nil {
		return err
	}

	// ---- WorkerID 租约与 ID 生成器 ----

	leaseOpts := []idgen.Option{idgen.WithLogger(logger), idgen.WithRedisConnector(redisConn)}
	if settings.WorkerIDLeaseDriver == "etcd" {
		etcdConn, err := connector.NewEtcd(settings.EtcdConfig(), connector.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := etcdConn.Connect(ctx); err != nil {
			return err
		}
		defer etcdConn.Close()
		leaseOpts = append(leaseOpts, idgen.WithEtcdConnector(etcdConn))
	}

	lease, err := idgen.NewLeaseManager(settings.LeaseConfig(), leaseOpts...)
	if err != nil {
		return err
	}
	workerID, err := lease.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lease.Release(releaseCtx)
	}()

	generator, err := idgen.NewSnowflake(workerID, idgen.WithSnowflakeLogger(logger))
	if err != nil {
		return err
	}

	// ---- 点击事件发布器（可选，RabbitMQ 不可用时降级为空实现）----

	publisher := newPublisher(ctx, settings, logger, meter)
	defer publisher.Close()

	// ---- 缓存与核心服务 ----

	cache, err := newCache(settings, redisConn, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	svc, err := shortener.NewService(settings.ShortenerConfig(), repo, cache, generator, publisher, logger, meter)
	if err != nil {
		return err
	}

	// ---- HTTP ----

	if settings.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(meter.Handler()))
	shortener.NewHandler(svc, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:    settings.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", clog.String("addr", settings.HTTPAddr))
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
	case err := <-lease.Lost():
		// 租约丢失意味着 WorkerID 可能被他人持有，继续运行会生成重复 ID
		logger.Error("worker id lease lost, shutting down", clog.Error(err))
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

// newPublisher 创建点击事件发布器
// RabbitMQ 不可用时降级为空实现，短链接主链路不依赖消息队列
func newPublisher(ctx context.Context, settings *config.Settings, logger clog.Logger, meter metrics.Meter) analytics.Publisher {
	mqConn, err := connector.NewRabbitMQ(settings.RabbitMQConfig(), connector.WithLogger(logger))
	if err != nil {
		logger.Warn("rabbitmq config invalid, click events disabled", clog.Error(err))
		return analytics.NewNopPublisher()
	}
	if err := mqConn.Connect(ctx); err != nil {
		logger.Warn("rabbitmq unavailable, click events disabled", clog.Error(err))
		return analytics.NewNopPublisher()
	}

	publisher, err := analytics.NewPublisher(mqConn, settings.Topology(), logger, meter)
	if err != nil {
		logger.Warn("publisher init failed, click events disabled", clog.Error(err))
		_ = mqConn.Close()
		return analytics.NewNopPublisher()
	}
	return publisher
}

// newCache 按配置选择缓存实现
func newCache(settings *config.Settings, redisConn connector.RedisConnector, logger clog.Logger) (shortener.Cache, error) {
	cfg := settings.ShortenerConfig()
	if cfg.CacheMode == "standalone" {
		return shortener.NewStandaloneCache(cfg.StandaloneCapacity, cfg.CacheTTL)
	}
	return shortener.NewRedisCache(redisConn, cfg.CacheTTL, logger)
}
