package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/cmd/generator/internal/generator"
	"github.com/shubham-shewale/stock-tracker/pkg/config"
)

// rough opening prices so the default feed looks plausible
var seeds = map[string]float64{
	"AAPL": 150.0, "GOOG": 2800.0, "TSLA": 700.0, "AMZN": 3400.0,
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := generator.RealClock{}
	dialer := &generator.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 5 * time.Second}}
	topics := generator.NewTopicCreator(logger, dialer, clock)
	if err := topics.Create(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.AlertsTopic); err != nil {
		logger.Warn("Topic setup failed", zap.Error(err))
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
		// batch to cut network round trips
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	gen := generator.NewStockGenerator(
		logger,
		writer,
		cfg.Feed.Symbols,
		seeds,
		generator.Options{Interval: cfg.Feed.Interval},
		generator.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		clock,
	)

	gen.Run(ctx)
	logger.Info("Shutdown signal received")

	// async writer: Close flushes the buffer
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
