package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"ms-timeline/internal/config"
	"ms-timeline/internal/database"
	"ms-timeline/internal/events/db"
	"ms-timeline/internal/events/redis"
	"ms-timeline/internal/events/service"
	"ms-timeline/internal/kafka"
	"ms-timeline/internal/logger"
	"ms-timeline/internal/server"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "timeline",
		Short:         "Timeline events service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(newInitDBCmd())

	return root
}

// bootstrap loads .env and the environment and builds the logger.
func bootstrap() (*config.Config, *logger.Logger, error) {
	envErr := godotenv.Load()

	cfg := config.Load()
	log, err := logger.NewLogger(logger.Options{
		Dir:      cfg.Log.Dir,
		Prefix:   "timeline",
		MinLevel: logger.ParseLevel(cfg.Log.Level),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	if cfg.UsesDefaultSecret() {
		log.Warn("CONFIG", "SECRET_KEY is not set, using the development default")
	}
	return cfg, log, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, error) {
	driver, _, err := database.ParseURL(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	log.Info("DATABASE", fmt.Sprintf("Connecting to %s database", driver))

	bunDB, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, err
	}
	log.LogDatabase("SCHEMA", "events", "schema ensured")
	return bunDB, nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("APP", "Starting timeline service initialization")

	bunDB, err := openDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("DATABASE", fmt.Sprintf("Database setup failed: %v", err))
		return err
	}
	defer bunDB.Close()
	log.Info("DATABASE", "✅ Database connection successful")

	eventService := service.NewEventService(db.New(bunDB), log)

	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("REDIS", fmt.Sprintf("Redis connection error: %v", err))
			return fmt.Errorf("redis ping: %w", err)
		}
		eventService.Locker = redis.NewOrderLock(redisClient, cfg.Redis.OrderLockTTL)
		log.Info("REDIS", fmt.Sprintf("✅ Redis order lock enabled on %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	} else {
		log.Info("REDIS", "REDIS_ADDR not set, order assignment uses the in-process lock")
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := kafka.EnsureTopic(topicCtx, cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.LogKafka("TOPIC", cfg.Kafka.Topic, "topic ensured")
		}
		cancel()

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		eventService.Publisher = producer
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	} else {
		log.Info("KAFKA", "Kafka disabled, change notifications are not published")
	}

	log.Info("HTTP", "Setting up router and middleware")
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      server.NewRouter(eventService, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Timeline service running on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")

	select {
	case err := <-serverErr:
		log.Error("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		return err
	case <-stop:
	}

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
		return err
	}
	log.Info("HTTP", "✅ Timeline service shutdown complete")
	return nil
}
