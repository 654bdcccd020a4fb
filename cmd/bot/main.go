package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/alex199571/Student-Bot/internal/admin"
	"github.com/alex199571/Student-Bot/internal/config"
	"github.com/alex199571/Student-Bot/internal/database"
	"github.com/alex199571/Student-Bot/internal/limits"
	"github.com/alex199571/Student-Bot/internal/llm"
	"github.com/alex199571/Student-Bot/internal/repository"
	"github.com/alex199571/Student-Bot/internal/service"
	"github.com/alex199571/Student-Bot/internal/storage"
	"github.com/alex199571/Student-Bot/internal/telegram"
	"github.com/alex199571/Student-Bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	// Daily counters live in Redis when it is configured, otherwise on the
	// account record itself.
	var daily limits.DailyCounter = limits.NewAccountCounter()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		defer rdb.Close()
		daily = limits.NewRedisCounter(rdb)
		logr.Info("daily counters backed by redis", "addr", cfg.RedisAddr)
	}
	engine := limits.NewEngine(daily)

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	llmClient := llm.NewClient(cfg, logr)

	userRepo := repository.NewUserRepository(db)
	queryLogRepo := repository.NewQueryLogRepository(db)

	userService := service.NewUserService(userRepo)
	actionService := service.NewActionService(engine, llmClient, queryLogRepo, logr)

	var exporter *storage.Exporter
	if cfg.ExportEnabled() {
		exporter, err = storage.NewExporter(storage.Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			UsePathStyle: cfg.S3UsePathStyle,
			Prefix:       cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage exporter: %v", err)
		}
	}

	bot := telegram.NewBot(cfg, botAPI, logr, userService, actionService, engine)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, userService, queryLogRepo, engine, exporter, botAPI)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}
