package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kglogistics/config"
	"kglogistics/events"
	"kglogistics/middleware"
	"kglogistics/routes"
	"kglogistics/services"
	"kglogistics/store"
	"kglogistics/utils"
	"kglogistics/worker"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	log := utils.Logger("server")
	cfg := config.AppConfig

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := openDB(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// External connections are made before the errgroup starts any goroutine.
	var storage fiber.Storage
	var memory *store.MemoryStorage
	if cfg.Redis.Enabled {
		redisStorage := store.NewRedisStorage(store.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "kglogistics:",
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisStorage.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		defer redisStorage.Close()
		storage = redisStorage
		log.WithField("address", cfg.Redis.Address).Info("Using Redis storage")
	} else {
		memory = store.NewMemoryStorage()
		storage = memory
		log.Info("Using in-memory storage")
	}

	rabbit, err := dialBroker(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	if rabbit != nil {
		defer rabbit.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	if memory != nil {
		sweeper := worker.NewSweepWorker(memory, 5*time.Minute)
		g.Go(func() error {
			sweeper.Start(ctx)
			return nil
		})
	}

	hub := events.NewHub()
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	publisher := events.MultiPublisher{hub}
	if rabbit != nil {
		publisher = append(publisher, rabbit)
	}

	mailer := utils.NewSMTPMailer(utils.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
	})
	if !mailer.Configured() {
		log.Warn("SMTP is not configured; emails will be recorded but not delivered")
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins

	app := routes.NewApp(corsConfig)
	routes.SetupRoutes(app, routes.Dependencies{
		DB:                    config.DB,
		Events:                publisher,
		Hub:                   hub,
		Mailer:                mailer,
		VIN:                   services.NewNHTSADecoder(cfg.VINDecoderBaseURL),
		Storage:               storage,
		JWTSecret:             cfg.AuthJWTSecret,
		NotificationEmail:     cfg.NotificationEmail,
		RateLimitPublicIntake: cfg.RateLimitPublicIntake,
		DraftTTL:              cfg.DraftTTL,
	})

	g.Go(func() error {
		log.WithField("port", cfg.ServerPort).Info("Server starting")
		return app.Listen(":" + cfg.ServerPort)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// dialBroker connects the RabbitMQ publisher. It returns nil when no broker
// URL is configured.
func dialBroker(cfg config.RabbitMQConfig) (*events.RabbitPublisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	return events.DialRabbit(cfg.URL, cfg.Exchange)
}
