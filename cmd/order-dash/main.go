package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheharzad-developer/daggys-cafe/internal/app"
	"github.com/sheharzad-developer/daggys-cafe/internal/changefeed"
	"github.com/sheharzad-developer/daggys-cafe/internal/client"
	"github.com/sheharzad-developer/daggys-cafe/internal/config"
	"github.com/sheharzad-developer/daggys-cafe/internal/logging"
	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
	"github.com/sheharzad-developer/daggys-cafe/internal/notify"
	"github.com/sheharzad-developer/daggys-cafe/internal/store"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/eventlog"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	wsURL := flag.String("url", "", "WebSocket URL of the order relay (overrides config)")
	logFile := flag.String("log", "", "Log file (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *wsURL != "" {
		cfg.Client.URL = *wsURL
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	// The dashboard owns the terminal, so logs go to a file.
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("dashboard failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo(version, "dashboard")

	notifier, err := notify.New(
		notify.NewDesktop(cfg.Notifier.Desktop, cfg.Notifier.Icon),
		notify.NewBeeper(cfg.Notifier.Sound, cfg.Notifier.BeepFrequency, cfg.Notifier.BeepDuration),
		logger,
		metricsRegistry,
	)
	if err != nil {
		return err
	}
	permission := notifier.RequestPermission(ctx)

	feedEnabled := cfg.ChangeFeed.Enabled && cfg.ChangeFeed.DatabaseURL != ""
	opts := []app.Option{app.WithQuitHook(cancel)}
	if feedEnabled {
		opts = append(opts, app.WithFeed())
	}
	p := tea.NewProgram(app.New(opts...), tea.WithAltScreen())

	relay := client.New(cfg.Client.URL, logger)
	relay.OnOrderUpdate(app.RelayHandler(notifier, p.Send))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Client.MetricsPort > 0 {
		metricsServer := metrics.NewServer(metrics.ServerConfig{
			Port:    cfg.Client.MetricsPort,
			Timeout: cfg.Metrics.Timeout,
		}, metricsRegistry, logger)
		g.Go(func() error {
			// The dashboard stays usable without its metrics endpoint.
			if err := metricsServer.Start(gctx); err != nil {
				p.Send(app.LogMsg{Kind: eventlog.KindError, Text: "metrics server: " + err.Error()})
			}
			return nil
		})
	}
	g.Go(func() error {
		p.Send(app.PermissionMsg{Permission: permission.String()})
		err := relay.Listen(gctx, client.Hooks{
			OnConnect:    func() { p.Send(app.RelayConnectedMsg{}) },
			OnDisconnect: func(err error) { p.Send(app.RelayDisconnectedMsg{Err: err}) },
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if feedEnabled {
		bridge, err := changefeed.NewBridge(
			changefeed.Config{
				Channel: cfg.ChangeFeed.Channel,
				Schema:  cfg.ChangeFeed.Schema,
				Table:   cfg.ChangeFeed.Table,
			},
			changefeed.PgxDialer(cfg.ChangeFeed.DatabaseURL),
			notifier,
			logger,
			changefeed.WithMetrics(metricsRegistry),
			changefeed.WithStateHook(func(s changefeed.State) {
				p.Send(app.FeedStateMsg{State: s.String()})
			}),
			changefeed.WithInsertHook(app.InsertHandler(p.Send)),
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := bridge.Start(gctx); err != nil {
				// Logged by the bridge; the dashboard keeps running on the relay alone.
				p.Send(app.LogMsg{Kind: eventlog.KindError, Text: "change feed: " + err.Error()})
				return nil
			}
			<-bridge.Done()
			return nil
		})
		g.Go(func() error {
			p.Send(loadStored(gctx, cfg, logger))
			return nil
		})
	}

	_, runErr := p.Run()
	cancel()

	if err := g.Wait(); err != nil {
		logger.Warn("background task ended with error", zap.Error(err))
	}
	notifier.Wait()
	relay.Close()
	return runErr
}

// loadStored reads the newest orders so the table does not start empty.
func loadStored(ctx context.Context, cfg *config.Config, logger *zap.Logger) tea.Msg {
	s, err := store.Connect(cfg.ChangeFeed.DatabaseURL, logger)
	if err != nil {
		return app.LogMsg{Kind: eventlog.KindError, Text: "order store: " + err.Error()}
	}
	defer s.Close()
	return app.LoadStored(ctx, s, cfg.Client.InitialOrders)
}
