package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"campusnotify/internal/auth"
	"campusnotify/internal/cache"
	"campusnotify/internal/config"
	"campusnotify/internal/database"
	"campusnotify/internal/handler"
	"campusnotify/internal/httputil"
	"campusnotify/internal/logger"
	"campusnotify/internal/queue"
	"campusnotify/internal/realtime"
	"campusnotify/internal/redis"
	"campusnotify/internal/repository"
	"campusnotify/internal/service"
	"campusnotify/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Run loads configuration, wires every component and serves until SIGINT or
// SIGTERM.
func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	log := logger.New("campusnotify", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	// 3. Connect to Redis. Without it the service runs single-process: rooms
	// and presence stay in memory and no notice stream is consumed.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, realtime is local-only and the notice stream is disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("Connected to Redis")
		}
	}

	app, err := build(ctx, cfg, db, redisClient, log)
	if err != nil {
		return err
	}

	// 4. Background work
	if app.bridge != nil {
		go func() {
			if err := app.bridge.Run(ctx, nil); err != nil {
				log.WithError(err).Error("Realtime bridge stopped")
			}
		}()
	}
	if app.workers != nil {
		if err := app.workers.Start(ctx); err != nil {
			return fmt.Errorf("start workers: %w", err)
		}
	}

	// 5. Serve
	server := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.ServerPort).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal, shutting down server...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to close")
	}
	app.hub.Shutdown()
	if app.workers != nil {
		app.workers.Stop()
	}

	log.Info("Server exited safely")
	return nil
}

type application struct {
	router  stdhttp.Handler
	hub     *realtime.Hub
	bridge  *realtime.RedisBroadcaster
	workers *worker.Manager
}

func build(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, log logrus.FieldLogger) (*application, error) {
	app := &application{}

	// Repositories
	directory := repository.NewDirectory(db)
	notices := repository.NewNoticeRepository(db)
	deliveries := repository.NewDeliveryRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)

	// Services
	resolver := service.NewRecipientResolver(directory, notices, log)
	prefs := service.NewPreferenceService(prefRepo, log)
	ledger := service.NewNotificationService(resolver, deliveries, log)
	devices := service.NewDeviceService(tokenRepo, log)

	var providers []service.PushProvider
	if cfg.FCMEnabled() {
		fcm, err := service.NewFCMClient(ctx, cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey, log)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fcm)
	} else {
		log.Warn("FCM credentials not set, FCM push disabled")
	}
	if cfg.ExpoPushEnabled {
		providers = append(providers, service.NewExpoPushClient(log))
	}
	push := service.NewPushDispatcher(tokenRepo, cfg.PushConcurrency, log, providers...)

	// Realtime
	var (
		rooms    realtime.Broadcaster
		presence realtime.Presence
	)
	if redisClient != nil {
		app.bridge = realtime.NewRedisBroadcaster(redisClient.Client, cfg.RealtimeRedisChannel, log)
		rooms = app.bridge
		presence = cache.NewPresenceCache(redisClient.Client)
	} else {
		rooms = realtime.NewLocalBroadcaster()
		presence = realtime.NewLocalPresence()
	}
	tokens := auth.NewValidator(cfg.JWTSecret)
	hubCfg := realtime.DefaultHubConfig()
	hubCfg.AllowedOrigins = cfg.RealtimeAllowedOrigins
	app.hub = realtime.NewHub(rooms, presence, ledger, tokens, hubCfg, log)

	fanout := service.NewFanoutService(resolver, prefs, ledger, notices, deliveries, app.hub, push, log)

	// Notice stream
	if redisClient != nil {
		consumer := queue.NewConsumer(redisClient.Client, log)
		app.workers = worker.NewManager(consumer, worker.NewHandler(fanout, log), worker.ManagerConfig{
			WorkerCount: cfg.WorkerCount,
		}, log)
	}

	// HTTP
	validator := httputil.NewValidator()
	app.router = NewRouter(RouterConfig{
		NotificationHandler: handler.NewNotificationHandler(ledger, app.hub, validator, log),
		PreferenceHandler:   handler.NewPreferenceHandler(prefs, validator, log),
		DeviceHandler:       handler.NewDeviceHandler(devices, validator, log),
		Realtime:            app.hub.ServeWS,
		Tokens:              tokens,
		Logger:              log,
	})
	return app, nil
}
