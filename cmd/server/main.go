package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheharzad-developer/daggys-cafe/internal/config"
	"github.com/sheharzad-developer/daggys-cafe/internal/logging"
	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
	"github.com/sheharzad-developer/daggys-cafe/internal/mock"
	"github.com/sheharzad-developer/daggys-cafe/internal/tracing"
	"github.com/sheharzad-developer/daggys-cafe/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	mockMode := flag.Bool("mock", false, "Broadcast made-up orders for demos")
	mockInterval := flag.Duration("mock-interval", 5*time.Second, "Time between mock orders")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.New(cfg.Log.Level, "")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *mockMode, *mockInterval); err != nil {
		logger.Fatal("order relay failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, mockMode bool, mockInterval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo(version, "relay")

	tracer := tracing.NewNoopTracer()
	if cfg.Tracing.Enabled {
		t, cleanup, err := tracing.NewTracer(tracing.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: cfg.Tracing.ServiceVersion,
			Endpoint:       cfg.Tracing.Endpoint,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := cleanup(shutdownCtx); err != nil {
				logger.Error("failed to cleanup tracing", zap.Error(err))
			}
		}()
		tracer = t
		logger.Info("tracing initialized",
			zap.String("service", cfg.Tracing.ServiceName),
			zap.String("endpoint", cfg.Tracing.Endpoint),
			zap.Float64("sample_rate", cfg.Tracing.SampleRate),
		)
	}

	registry := ws.NewRegistry(logger,
		ws.WithSendBuffer(cfg.Relay.SendBuffer),
		ws.WithWriteTimeout(cfg.Relay.WriteTimeout),
		ws.WithPingInterval(cfg.Relay.PingInterval),
		ws.WithMetrics(metricsRegistry),
	)
	baseRelay, err := ws.NewRelay(registry, logger)
	if err != nil {
		return err
	}
	relay := ws.NewTracedRelay(ws.NewMetricsRelay(baseRelay, metricsRegistry), tracer)
	server := ws.NewServer(cfg, registry, relay, logger)

	g, gctx := errgroup.WithContext(ctx)
	if mockMode {
		logger.Info("starting in mock mode", zap.Duration("interval", mockInterval))
		mock.NewGenerator(relay, mockInterval, logger).Start(gctx)
	}

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(metrics.ServerConfig{
			Port:    cfg.Metrics.Port,
			Timeout: cfg.Metrics.Timeout,
		}, metricsRegistry, logger)
		g.Go(func() error {
			return metricsServer.Start(gctx)
		})
		logger.Info("metrics server started",
			zap.String("endpoint", fmt.Sprintf("http://localhost:%d/metrics", cfg.Metrics.Port)),
		)
	}

	err = g.Wait()
	logger.Info("order relay stopped", zap.Int("connections", registry.Len()))
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
