// Command place-order stands in for checkout: it records an order and/or
// announces it to the relay, and can change an order's stored status.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/client"
	"github.com/sheharzad-developer/daggys-cafe/internal/config"
	"github.com/sheharzad-developer/daggys-cafe/internal/logging"
	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/store"
)

const echoTimeout = 5 * time.Second

type options struct {
	via       string
	customer  string
	email     string
	items     string
	total     float64
	payment   string
	setStatus string
	orderID   string
	migrate   bool
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	var opts options
	flag.StringVar(&opts.via, "via", "both", "Where to send the order: db, socket or both")
	flag.StringVar(&opts.customer, "customer", "", "Customer name")
	flag.StringVar(&opts.email, "email", "", "Customer email")
	flag.StringVar(&opts.items, "items", "", `Items as "name:qty:price,name:qty:price"`)
	flag.Float64Var(&opts.total, "total", 0, "Order total (defaults to the sum of items)")
	flag.StringVar(&opts.payment, "payment-intent", "", "Payment intent id")
	flag.StringVar(&opts.orderID, "id", "", "Order id (defaults to ORD-<unix millis>)")
	flag.StringVar(&opts.setStatus, "set-status", "", "Update the stored status of -id instead of placing an order")
	flag.BoolVar(&opts.migrate, "migrate", false, "Create the orders table and insert trigger first")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, "")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("place-order failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *zap.Logger) error {
	if opts.setStatus != "" {
		return updateStatus(ctx, cfg, opts, logger)
	}

	toDB, toSocket, err := parseVia(opts.via)
	if err != nil {
		return err
	}
	items, err := parseItems(opts.items)
	if err != nil {
		return err
	}

	now := time.Now()
	ev := order.Event{
		ID:           opts.orderID,
		CustomerName: opts.customer,
		Total:        opts.total,
		Items:        items,
		Status:       order.StatusPending,
		Timestamp:    now.UTC(),
	}
	if ev.ID == "" {
		ev.ID = order.NewID(now)
	}
	if ev.Total == 0 {
		ev.Total = ev.ItemsTotal()
	}

	if toDB {
		s, err := openStore(ctx, cfg, opts.migrate, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Insert(ctx, ev, opts.email, opts.payment); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		logger.Info("order stored", zap.String("order", ev.ID))
	}

	if toSocket {
		if err := announce(ctx, cfg.Client.URL, ev, logger); err != nil {
			return err
		}
	}

	fmt.Println(ev.ID)
	return nil
}

// announce emits newOrder and waits for the relay to echo it back, which
// also guarantees the frame was read before the socket closes.
func announce(ctx context.Context, url string, ev order.Event, logger *zap.Logger) error {
	c := client.New(url, logger)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	echoed := make(chan struct{}, 1)
	c.OnOrderUpdate(func(payload json.RawMessage) {
		if got, err := client.DecodeOrder(payload); err == nil && got.ID == ev.ID {
			select {
			case echoed <- struct{}{}:
			default:
			}
		}
	})

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.ReadLoop(readCtx)

	if err := c.EmitNewOrder(ev); err != nil {
		return err
	}

	select {
	case <-echoed:
		logger.Info("order announced", zap.String("order", ev.ID))
		return nil
	case <-time.After(echoTimeout):
		return fmt.Errorf("relay did not echo order %s within %s", ev.ID, echoTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func updateStatus(ctx context.Context, cfg *config.Config, opts options, logger *zap.Logger) error {
	if opts.orderID == "" {
		return errors.New("-set-status needs -id")
	}
	status := order.Status(opts.setStatus)
	s, err := openStore(ctx, cfg, opts.migrate, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.UpdateStatus(ctx, opts.orderID, status); err != nil {
		return err
	}
	ev, err := s.Get(ctx, opts.orderID)
	if err != nil {
		return err
	}
	logger.Info("order status updated", zap.String("order", ev.ID), zap.String("status", string(ev.Status)))
	fmt.Printf("%s: %s\n", order.Headline(ev.ID, ev.CustomerName), ev.Status)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) (*store.Store, error) {
	s, err := store.Connect(cfg.ChangeFeed.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := s.Migrate(ctx, cfg.ChangeFeed.Channel, cfg.ChangeFeed.Schema); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func parseVia(via string) (toDB, toSocket bool, err error) {
	switch strings.ToLower(via) {
	case "db":
		return true, false, nil
	case "socket":
		return false, true, nil
	case "both":
		return true, true, nil
	}
	return false, false, fmt.Errorf("-via must be db, socket or both, got %q", via)
}

// parseItems reads "name:qty:price" entries separated by commas.
func parseItems(s string) ([]order.Item, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var items []order.Item
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("item %q: want name:qty:price", part)
		}
		qty, err := strconv.Atoi(fields[1])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("item %q: bad quantity", part)
		}
		price, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("item %q: bad price", part)
		}
		items = append(items, order.Item{Name: fields[0], Quantity: qty, Price: price})
	}
	return items, nil
}
