package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"meta-relay/internal/api"
	"meta-relay/internal/config"
	"meta-relay/internal/database"
	"meta-relay/internal/graph"
	"meta-relay/internal/logger"
	"meta-relay/internal/repository"
	"meta-relay/internal/service"
	"meta-relay/internal/service/conversation"
	"meta-relay/internal/service/message"
	"meta-relay/internal/service/statistics"
	"meta-relay/internal/utils"
	"meta-relay/internal/webhook"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: search ./config.yaml)")
	initConfig := flag.String("init-config", "", "write an example config to this path and exit")
	flag.Parse()

	if *initConfig != "" {
		if err := config.SaveExampleConfig(*initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write example config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Example config written to %s\n", *initConfig)
		return
	}

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting meta relay", zap.String("environment", cfg.Environment))

	httpClient, err := utils.NewHTTPClient(cfg.Proxy, time.Duration(cfg.Meta.HTTPTimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatal("Failed to create HTTP client", zap.Error(err))
	}
	if cfg.Proxy.Enabled {
		log.Info("Proxy enabled for outbound requests", zap.String("proxy_url", cfg.Proxy.URL))
	}

	// Alerts are optional; without them failures are only logged
	var alerter message.Alerter
	var errorNotifier *service.ErrorNotifier
	if cfg.Alerts.Enabled {
		alertBot, err := service.NewAlertBot(cfg.Alerts, httpClient)
		if err != nil {
			log.Fatal("Failed to create alert bot", zap.Error(err))
		}
		errorNotifier = service.NewErrorNotifier(alertBot, cfg.Alerts, log)
		alerter = errorNotifier
	}

	// Connect to database
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	log.Info("Database connected and migrated successfully",
		zap.String("type", cfg.Database.Type))

	// If Redis is enabled but unreachable at startup, terminate
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.ConnectRedis(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis at startup", zap.Error(err))
		}
		log.Info("Redis connected successfully")
	}

	// Repositories
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Services
	locker := conversation.NewKeyLocker(redisClient, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second, log)
	resolver := conversation.NewResolver(conversationRepo, locker, log)
	reconciler := message.NewReconciler(messageRepo, resolver, cfg.Meta, alerter, log)
	graphClient := graph.NewClient(cfg.Meta, httpClient, log.Named("graph"))
	retryHandler := message.NewRetryHandler(cfg.Retry, log)
	sender := message.NewSender(graphClient, messageRepo, resolver, reconciler, retryHandler, cfg.Meta.DefaultTemplateLanguage, log)
	statsService := statistics.NewService(conversationRepo, messageRepo, log)

	router := api.NewRouter(api.Handlers{
		Webhooks: []*api.WebhookHandler{
			api.NewWebhookHandler(cfg.Meta.VerifyToken, webhook.NewWhatsAppInterpreter(log), reconciler, log),
			api.NewWebhookHandler(cfg.Meta.VerifyToken, webhook.NewMessengerInterpreter(log), reconciler, log),
		},
		Messages:  api.NewMessageHandler(sender, conversationRepo, messageRepo, log),
		Admin:     api.NewAdminHandler(statsService, graphClient, log),
		AppSecret: cfg.Meta.AppSecret,
		Logger:    log.Named("http"),
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisClient != nil {
		go monitorRedisConnection(ctx, redisClient, errorNotifier, log)
	}

	go func() {
		log.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	reconciler.WaitAlerts()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("Shutdown complete")
}

// monitorRedisConnection pings Redis periodically. The conversation locker
// already falls back to process-local locks on Redis errors; this only
// makes the outage visible.
func monitorRedisConnection(
	ctx context.Context,
	redisClient *redis.Client,
	errorNotifier *service.ErrorNotifier,
	log *zap.Logger,
) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := redisClient.Ping(pingCtx).Err()
			cancel()

			if err != nil {
				log.Warn("Redis connection lost, conversation locks are process-local",
					zap.Error(err))
				if errorNotifier != nil {
					errorNotifier.NotifyCriticalError(ctx, service.ErrorTypeRedis, err,
						"Redis ping failed")
				}
			}
		}
	}
}
