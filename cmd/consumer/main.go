// 点击事件消费者：从 RabbitMQ 消费点击事件并写入 ClickHouse。
//
// 手动确认、at-least-once 语义。收到 SIGINT/SIGTERM 后停止消费，
// 未确认的消息会被 broker 重新投递。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ceyewan/shortlink/analytics"
	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/config"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "consumer: %v\n", err)
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
	logger = logger.With(clog.String("service", "consumer"))
	logger.Info("starting", clog.String("config", settings.String()))

	meter, err := metrics.New("shortlink")
	if err != nil {
		return err
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	mqConn, err := connector.NewRabbitMQ(settings.RabbitMQConfig(), connector.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := mqConn.Connect(startCtx); err != nil {
		return err
	}
	defer mqConn.Close()

	chConn, err := connector.NewClickHouse(settings.ClickHouseConfig(), connector.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := chConn.Connect(startCtx); err != nil {
		return err
	}
	defer chConn.Close()

	sink, err := analytics.NewSink(startCtx, chConn, logger)
	if err != nil {
		return err
	}

	consumerCfg := &analytics.ConsumerConfig{Topology: settings.Topology()}
	consumer, err := analytics.NewConsumer(mqConn, sink, consumerCfg, logger, meter)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Run(ctx); err != nil {
		return err
	}

	logger.Info("stopped")
	return nil
}
