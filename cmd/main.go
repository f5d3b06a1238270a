package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/api"
	"github.com/JhonesBR/go-coinbot/internal/api/render"
	"github.com/JhonesBR/go-coinbot/internal/config"
	"github.com/JhonesBR/go-coinbot/internal/db"
	"github.com/JhonesBR/go-coinbot/internal/events"
	"github.com/JhonesBR/go-coinbot/internal/ledger"
	"github.com/JhonesBR/go-coinbot/internal/logger"
	"github.com/JhonesBR/go-coinbot/internal/market"
	"github.com/JhonesBR/go-coinbot/internal/metrics"
	"github.com/JhonesBR/go-coinbot/internal/portfolio"
	"github.com/JhonesBR/go-coinbot/internal/reward"
	"github.com/JhonesBR/go-coinbot/internal/trade"
	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logger.New(cfg.Logging)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("coinbot stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger and transaction log
	var (
		book    ledger.Ledger
		history txlog.Log
	)
	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		pool, err := db.NewConnection(ctx, cfg.Ledger.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pgLedger := ledger.NewPostgresLedger(pool, cfg.Trade.StartingBalance)
		if err := pgLedger.Migrate(ctx); err != nil {
			return err
		}
		pgLog := txlog.NewPostgresLog(pool, log)
		if err := pgLog.Migrate(ctx); err != nil {
			return err
		}
		book, history = pgLedger, pgLog
	default:
		book = ledger.NewSnapshotLedger(ledger.NewFileStore(cfg.Ledger.Path), cfg.Trade.StartingBalance)
		history = txlog.NewFileLog(cfg.Ledger.TransactionsPath, log)
	}
	log.WithField("backend", cfg.Ledger.Backend).Info("ledger ready")

	// Market data, cached in redis when configured
	var prices market.Source = market.NewCoinGecko(market.CoinGeckoConfig{
		BaseURL:   cfg.CoinGecko.BaseURL,
		APIKey:    cfg.CoinGecko.APIKey,
		Timeout:   cfg.CoinGecko.Timeout,
		RateLimit: cfg.CoinGecko.RateLimit,
	})
	var cooldown reward.Cooldown = reward.NewMemoryCooldown()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		prices = market.NewCachedSource(prices, client, cfg.Redis.PriceTTL, log)
		cooldown = reward.NewRedisCooldown(client)
		log.WithField("addr", cfg.Redis.Addr).Info("redis price cache enabled")
	}

	// Trade events
	var publisher events.Publisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		publisher = amqpPublisher
		log.WithField("exchange", cfg.AMQP.Exchange).Info("publishing trade events")
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	catalog := market.DefaultCatalog()
	accounts := account.NewService(book)
	engine := trade.NewEngine(trade.Config{QuoteTTL: cfg.Trade.QuoteTTL}, trade.Deps{
		Catalog:   catalog,
		Prices:    prices,
		Accounts:  accounts,
		History:   history,
		Publisher: publisher,
		Recorder:  m,
		Logger:    log,
	})
	rewards := reward.NewService(reward.Config{
		Amount:   cfg.Reward.Amount,
		Cooldown: cfg.Reward.Cooldown,
	}, accounts, cooldown, m, log)

	// Initialize a new Fiber app
	app := fiber.New(fiber.Config{
		AppName: "coinbot",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			return render.Error(c, err)
		},
	})
	app.Use(recover.New())
	app.Use(m.Middleware())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Initialize the API routes
	api.InitializeRoutes(app, api.Services{
		Accounts:  accounts,
		History:   history,
		Catalog:   catalog,
		Prices:    prices,
		Portfolio: portfolio.NewValuer(accounts, catalog, prices),
		Rewards:   rewards,
		Engine:    engine,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.HTTPAddr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	log.WithField("addr", cfg.HTTPAddr).Info("coinbot listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
