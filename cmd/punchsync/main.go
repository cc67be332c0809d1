package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"punchsync/internal/attendance"
	"punchsync/internal/config"
	"punchsync/internal/device"
	"punchsync/internal/httpapi"
	"punchsync/internal/ingest"
	"punchsync/internal/mqtt"
	"punchsync/internal/notify"
	"punchsync/internal/poller"
	"punchsync/internal/repository"
	"punchsync/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sync.TriggerSecret == "" {
		logger.Fatal("SYNC_TRIGGER_SECRET is required")
	}

	db, err := repository.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	devicesRepo := repository.NewPostgresDevicesRepo(db)
	identityRepo := repository.NewPostgresIdentityRepo(db)
	rawEventsRepo := repository.NewPostgresRawEventsRepo(db)
	attendanceRepo := repository.NewPostgresAttendanceRepo(db)
	peopleRepo := repository.NewPostgresPeopleRepo(db)

	notifier := notify.NewRedisNotifier(redisClient, cfg.Attendance.NotifyStream, logger)
	machine := attendance.NewMachine(attendanceRepo, peopleRepo, notifier, cfg.Attendance.TZOffsetSeconds, logger)
	resolver := ingest.NewResolver(identityRepo)
	ingestor := ingest.NewIngestor(rawEventsRepo, resolver, machine, logger)

	clients := device.NewFactory(time.Duration(cfg.Sync.DeviceTimeout)*time.Second, logger)
	orchestrator := poller.NewOrchestrator(devicesRepo, ingestor, clients, cfg.Sync, logger)

	syncHandler := httpapi.NewSyncHandler(orchestrator, devicesRepo, db, redisClient, cfg.Sync.TriggerSecret, logger)
	router := httpapi.NewRouter(logger)
	router.RegisterSyncRoutes(syncHandler)

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Optional MQTT trigger path for schedulers that don't speak HTTP.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		trigger := mqtt.NewTriggerConsumer(mqttClient, orchestrator, cfg.MQTT.Topic, logger)
		go func() {
			if err := trigger.Start(ctx); err != nil {
				logger.Error("MQTT trigger consumer exited", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = redisClient.Close()
	_ = db.Close()
}
