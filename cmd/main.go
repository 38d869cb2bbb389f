package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"restaurant-pos/internal/api"
	"restaurant-pos/internal/config"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/metrics"
	"restaurant-pos/internal/services/dayreset"
	"restaurant-pos/internal/services/notification"
	"restaurant-pos/internal/services/order"
	"restaurant-pos/internal/services/report"
	"restaurant-pos/internal/staff"
	"restaurant-pos/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "restaurant-pos",
		Usage: "restaurant point-of-sale order and settlement service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"POS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and the day reset scheduler",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "print-events", Usage: "print branch events to stdout"},
				},
				Action: runServe,
			},
			{
				Name:  "notification-subscriber",
				Usage: "print events received from RabbitMQ",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "prefetch", Value: 10, Usage: "RabbitMQ prefetch count"},
				},
				Action: runNotificationSubscriber,
			},
			{
				Name:   "migrate",
				Usage:  "apply PostgreSQL migrations",
				Action: runMigrate,
			},
			{
				Name:  "reset-day",
				Usage: "clear the completed-order archive now",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "branch", Usage: "branch to reset; defaults to every configured branch"},
				},
				Action: runResetDay,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// pingFunc adapts a plain function to api.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// runtime holds the collaborators shared by the commands
type runtime struct {
	cfg       *config.Config
	log       *logger.Logger
	store     storage.Store
	locker    *storage.Locker
	hub       *messaging.Hub
	publisher messaging.EventPublisher
	health    map[string]api.Pinger
	closers   []func() error
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.Error("shutdown_failed", "Failed to release resource", "shutdown", err, nil)
		}
	}
}

func loadConfig(c *cli.Context, service string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, logger.New(service), nil
}

// bootstrap opens the order store and the event publishers
func bootstrap(ctx context.Context, cfg *config.Config, log *logger.Logger) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		log:    log,
		locker: storage.NewLocker(),
		hub:    messaging.NewHub(256),
		health: map[string]api.Pinger{},
	}

	store, err := openStore(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	publishers := messaging.Fanout{rt.hub}
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.New(cfg, log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to initialize messaging: %w", err)
		}
		rt.closers = append(rt.closers, conn.Close)
		rt.health["rabbitmq"] = pingFunc(func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		})
		publishers = append(publishers, messaging.NewPublisher(conn, log))
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", nil)
	}
	rt.publisher = publishers
	return rt, nil
}

func openStore(ctx context.Context, rt *runtime) (storage.Store, error) {
	cfg := rt.cfg
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "file":
		return storage.NewFileStore(cfg.Storage.DataDir)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		return storage.OpenSQLite(cfg.Storage.SQLitePath)
	case "postgres":
		if err := database.RunMigrations(cfg.DatabaseURL(), rt.log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		db, err := database.New(ctx, cfg, rt.log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		rt.health["postgres"] = db
		rt.log.Info("db_connected", "Connected to PostgreSQL database", "startup", nil)
		return storage.NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
}

// dataDir is where menus and staff live; the memory driver keeps them in process
func dataDir(cfg *config.Config) string {
	if cfg.Storage.Driver == "memory" {
		return ""
	}
	return cfg.Storage.DataDir
}

func runServe(c *cli.Context) error {
	cfg, log, err := loadConfig(c, "pos-server")
	if err != nil {
		return err
	}
	ctx := c.Context
	requestID := logger.GenerateRequestID()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	rt, err := bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	recorder, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	catalog, err := menu.NewCatalog(dataDir(cfg), rt.publisher, log)
	if err != nil {
		return fmt.Errorf("failed to load menu: %w", err)
	}
	directory, err := staff.NewDirectory(dataDir(cfg), rt.publisher, log)
	if err != nil {
		return fmt.Errorf("failed to load staff: %w", err)
	}
	for _, branch := range cfg.Branches {
		if err := directory.Seed(branch, cfg.Auth.AdminPIN); err != nil {
			return fmt.Errorf("failed to seed staff for %s: %w", branch, err)
		}
	}

	var guard dayreset.Guard = dayreset.NewMemoryGuard()
	if cfg.Redis.Enabled {
		redisGuard := dayreset.NewRedisGuard(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rt.closers = append(rt.closers, redisGuard.Close)
		rt.health["redis"] = redisGuard
		guard = redisGuard
	}

	orders := order.NewService(rt.store, catalog, rt.publisher, rt.locker, log, order.WithMetrics(recorder))
	reports := report.NewService(rt.store, rt.locker, loc, log)

	server := api.NewServer(api.Deps{
		Orders:        orders,
		Reports:       reports,
		Menu:          catalog,
		Staff:         directory,
		Tokens:        staff.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		DefaultBranch: cfg.Branches[0],
		LoginRPS:      cfg.Auth.LoginRPS,
		LoginBurst:    cfg.Auth.LoginBurst,
		Health:        rt.health,
		Logger:        log,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("service_started", fmt.Sprintf("POS server started on port %d", cfg.Server.Port), requestID, map[string]interface{}{
			"port":     cfg.Server.Port,
			"storage":  cfg.Storage.Driver,
			"branches": cfg.Branches,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.DayReset.Enabled {
		scheduler := dayreset.NewScheduler(orders, guard, cfg.Branches, cfg.DayReset.Interval, loc, log, time.Now)
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	if c.Bool("print-events") {
		printer := notification.NewSubscriber(nil, log)
		for _, branch := range cfg.Branches {
			events, unsubscribe := rt.hub.Subscribe(branch)
			g.Go(func() error {
				defer unsubscribe()
				printer.Follow(gctx, events)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		log.Error("service_failed", "POS server failed", requestID, err, nil)
		return err
	}
	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
	return nil
}

func runNotificationSubscriber(c *cli.Context) error {
	cfg, log, err := loadConfig(c, "notification-subscriber")
	if err != nil {
		return err
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", c.Int("prefetch"))
	return notification.NewSubscriber(consumer, log).Start(c.Context)
}

func runMigrate(c *cli.Context) error {
	cfg, log, err := loadConfig(c, "migrate")
	if err != nil {
		return err
	}
	return database.RunMigrations(cfg.DatabaseURL(), log)
}

func runResetDay(c *cli.Context) error {
	cfg, log, err := loadConfig(c, "reset-day")
	if err != nil {
		return err
	}

	rt, err := bootstrap(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	catalog, err := menu.NewCatalog(dataDir(cfg), rt.publisher, log)
	if err != nil {
		return fmt.Errorf("failed to load menu: %w", err)
	}
	orders := order.NewService(rt.store, catalog, rt.publisher, rt.locker, log)

	branches := c.StringSlice("branch")
	if len(branches) == 0 {
		branches = cfg.Branches
	}
	scheduler := dayreset.NewScheduler(orders, dayreset.NewMemoryGuard(), branches, cfg.DayReset.Interval, loc, log, time.Now)
	if err := scheduler.ResetAll(c.Context); err != nil {
		return err
	}
	fmt.Printf("archive cleared for branches %v\n", branches)
	return nil
}
