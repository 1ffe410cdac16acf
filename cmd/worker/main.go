package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"traincomp/internal/clock"
	"traincomp/internal/config"
	"traincomp/internal/database"
	"traincomp/internal/mailer"
	"traincomp/internal/metrics"
	"traincomp/internal/storage"
	"traincomp/internal/tasks"
	"traincomp/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	var mail mailer.Mailer
	if cfg.Mail.Enabled() {
		mail = mailer.NewClient(cfg.Mail)
		logger.Info("mail channel enabled", slog.String("sender", cfg.Mail.SenderEmail))
	} else {
		logger.Warn("mail channel disabled, reminders will only be logged")
	}

	concurrency := cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
	})

	reportHandler := worker.NewReportTaskHandler(db, storageClient, redisClient, logger)
	reminderHandler := worker.NewReminderHandler(db, mail, clock.System{}, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeReportGenerate, reportHandler)
	mux.Handle(tasks.TypeTrainingReminder, reminderHandler)

	interval := cfg.Worker.ReminderInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	entryID, err := scheduler.Register(
		fmt.Sprintf("@every %s", interval),
		tasks.NewTrainingReminderTask(),
		asynq.MaxRetry(0),
	)
	if err != nil {
		log.Fatalf("register reminder schedule: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.String("reminder_entry", entryID),
		slog.Duration("reminder_interval", interval))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
