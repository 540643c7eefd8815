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

	"github.com/fjod/go_cart/fulfillment-service/internal/cache"
	"github.com/fjod/go_cart/fulfillment-service/internal/config"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	fhttp "github.com/fjod/go_cart/fulfillment-service/internal/http"
	"github.com/fjod/go_cart/fulfillment-service/internal/logger"
	"github.com/fjod/go_cart/fulfillment-service/internal/metrics"
	"github.com/fjod/go_cart/fulfillment-service/internal/publisher"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/fjod/go_cart/fulfillment-service/internal/service"
	"github.com/fjod/go_cart/fulfillment-service/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "fulfillment-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fulfillment service stopped with error")
	}
	log.Info().Msg("fulfillment service stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.SeedDemoData {
		if err := seedCatalog(ctx, st.Inventory()); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info().Int("products", len(demoCatalog)).Msg("demo catalog seeded")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	orderOpts := []service.Option{
		service.WithMetrics(m),
		service.WithLogger(log),
	}
	if cfg.StrictStatusTransitions {
		orderOpts = append(orderOpts, service.WithTransitionPolicy(domain.StrictTransitions))
	}

	var cartCache cache.CartCache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis ping succeeded")

		cartCache = cache.NewRedisCartCache(redisClient)
		orderOpts = append(orderOpts,
			service.WithCartCache(cartCache),
			service.WithOrderCache(cache.NewRedisOrderCache(redisClient)))
	}

	orders := service.NewOrderService(st, orderOpts...)
	carts := service.NewCartService(st, cartCache, log)

	router := fhttp.NewRouter(fhttp.RouterConfig{
		Orders:         orders,
		Carts:          carts,
		Logger:         log,
		Metrics:        m,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		Ready: func(r *http.Request) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Ping(r.Context()).Err()
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Str("store", cfg.StoreDriver).Msg("fulfillment service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		poller := publisher.NewOutboxPoller(st.Outbox(),
			publisher.NewKafkaWriter(cfg.OutboxTopic, brokers...),
			publisher.WithInterval(cfg.OutboxPollInterval),
			publisher.WithMetrics(m),
			publisher.WithLogger(log))

		g.Go(func() error {
			log.Info().Strs("brokers", brokers).Str("topic", cfg.OutboxTopic).Msg("outbox relay started")
			poller.Run(gctx)
			return poller.Close()
		})
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	return g.Wait()
}

func openStore(cfg *config.Config, log zerolog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil

	case config.StoreSQLite:
		repo, err := repository.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("database migrations completed")
		return repo, nil

	default:
		creds := &repository.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsPath,
		}
		repo, err := repository.NewPostgresRepository(creds)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := repo.RunMigrations(creds.MigrationsDirPath); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Str("host", cfg.DBHost).Msg("database migrations completed")
		return repo, nil
	}
}
