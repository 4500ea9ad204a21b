package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ordersync/internal/app/admin"
	"ordersync/internal/common/config"
	"ordersync/internal/common/db"
	"ordersync/internal/common/logger"
	"ordersync/internal/common/mq"
	"ordersync/internal/customers"
	"ordersync/internal/feed"
	"ordersync/internal/registry"
	"ordersync/internal/repository"
	"ordersync/internal/store"
)

func main() {
	mode := flag.String("mode", "admin-service", "admin-service")
	port := flag.Int("port", 0, "http port, overrides config")
	cfgPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "admin-service":
		if err := runAdmin(ctx, *cfgPath, *port); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: admin-service")
		os.Exit(2)
	}
}

func runAdmin(ctx context.Context, cfgPath string, port int) error {
	lg := logger.New("admin-service")

	if cfgPath == "" {
		found, err := config.FindConfig()
		if err != nil {
			return fmt.Errorf("no config file found: %w", err)
		}
		cfgPath = found
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Admin.Port
	}

	conn, err := db.Connect(ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Pass, cfg.Database.Name)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close()

	client, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer client.Close()
	if err := client.DeclareAll(); err != nil {
		return fmt.Errorf("declare exchanges: %w", err)
	}

	pub := feed.NewPublisher(client, lg)
	orders := repository.NewOrders(conn, pub, lg)
	reg := registry.New(feed.NewAMQPOpener(client, lg), lg)

	st := store.New(orders, orders, reg, lg,
		store.WithPageSize(cfg.Admin.PageSize),
		store.WithDebouncedReload(time.Duration(cfg.Admin.DebounceMS)*time.Millisecond))
	if err := st.Start(ctx, feed.AllOrders()); err != nil {
		return fmt.Errorf("start order store: %w", err)
	}
	defer st.Stop()

	custs := customers.New(repository.NewCustomers(conn), orders, lg)

	lg.Info("service_started", map[string]any{"port": port, "page_size": cfg.Admin.PageSize})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return admin.Run(gctx, port, admin.Deps{Store: st, Customers: custs, Writer: orders, Log: lg})
	})
	return g.Wait()
}
