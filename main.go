package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storefront/config"
	"storefront/consumers"
	"storefront/controllers"
	"storefront/database"
	"storefront/mailer"
	"storefront/middlewares"
	"storefront/rabbitmq"
	"storefront/routes"
	"storefront/services"
	"storefront/utils"
)

func main() {
	cfg := config.LoadConfig()
	setupLogger(cfg)
	gin.SetMode(cfg.GinMode)
	if err := cfg.ValidateSecrets(); err != nil {
		log.Fatal().Err(err).Msg("refusing to start with insecure token secrets")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("database initialization failed")
	}
	defer database.CloseDB()

	if err := database.AutoMigrate(ctx, database.DB, 3); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	prometheus.MustRegister(collectors.NewDBStatsCollector(database.DB, cfg.DBName))

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	resetTokens := utils.NewTokenManager(cfg.ResetSecret, cfg.ResetTokenTTL)
	mail := mailer.New(cfg)

	userService := services.NewUserService(database.DB, tokens)
	resetService := services.NewPasswordResetService(database.DB, resetTokens, mail, cfg.FrontendURL)
	productService := services.NewProductService(database.DB)

	var events services.EventPublisher
	if cfg.EventsEnabled() {
		rmq, err := rabbitmq.NewRabbitMQ(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("RabbitMQ initialization failed")
		}
		defer rmq.Close()

		if err := rmq.SetupQueues(); err != nil {
			log.Fatal().Err(err).Msg("failed to set up RabbitMQ queues")
		}

		consumer := consumers.NewOrderConsumer(userService, mail)
		if err := consumer.Start(ctx, rmq.Channel, cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to start order consumer")
		}
		events = rmq
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, order events disabled")
	}
	orderService := services.NewOrderService(database.DB, events)

	redisClient := newRedisClient(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiter := middlewares.NewRateLimiter(redisClient)

	router := routes.SetupRouter(cfg, routes.Handlers{
		Users:    controllers.NewUserController(userService, resetService),
		Products: controllers.NewProductController(productService),
		Orders:   controllers.NewOrderController(orderService),
	}, tokens, limiter, database.DB)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// newRedisClient returns nil when no Redis is configured, which turns rate
// limiting off.
func newRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set, rate limiting disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not reachable, rate limits will fail open")
	}
	return client
}
