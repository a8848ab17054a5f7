package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"homework_bot/internal/ai"
	"homework_bot/internal/bot"
	"homework_bot/internal/broadcast"
	"homework_bot/internal/config"
	"homework_bot/internal/db"
	"homework_bot/internal/domain"
	"homework_bot/internal/fsm"
	httpServer "homework_bot/internal/http"
	"homework_bot/internal/http/handlers"
	"homework_bot/internal/logger"
	"homework_bot/internal/repository"
	"homework_bot/internal/scheduler"
	"homework_bot/internal/service"
	"homework_bot/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	applied, err := db.Migrate(ctx, dbPool)
	if err != nil {
		logger.Fatal("failed to apply migrations", "error", err)
	}
	logger.Info("migrations up to date", "applied", applied)

	pingers := map[string]handlers.Pinger{"database": dbPool}

	var states fsm.Store
	if cfg.RedisAddr != "" {
		rdb, err := fsm.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to redis", "error", err)
		}
		defer rdb.Close()
		states = fsm.NewRedisStore(rdb, fsm.DefaultTTL)
		pingers["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("conversation state in redis", "addr", cfg.RedisAddr)
	} else {
		states = fsm.NewMemoryStore(fsm.DefaultTTL)
		logger.Warn("REDIS_ADDR is not set, conversation state is kept in memory")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal("failed to create telegram bot", "error", err)
	}
	logger.Info("authorized on telegram", "username", api.Self.UserName)

	tutor, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiOCRModel, cfg.GeminiAnswerModel)
	if err != nil {
		logger.Fatal("failed to create gemini client", "error", err)
	}
	defer tutor.Close()

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	referralRepo := repository.NewReferralRepository(dbPool)
	usageRepo := repository.NewUsageRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)

	// Services
	prizes := domain.DefaultPrizes
	notices := bot.NewReferralNotices(api, cfg.ReferralBonus, prizes)
	quota := service.NewQuotaService(userRepo, usageRepo, cfg.DailyRefill)
	referrals := service.NewReferralService(userRepo, referralRepo, notices, cfg.StartCredits, cfg.ReferralBonus)
	users := service.NewUserService(userRepo, cfg.StartCredits)
	admin := service.NewAdminService(userRepo, referralRepo, usageRepo, service.NewAuditService(auditRepo))

	b := bot.New(api, bot.Options{
		Username:   api.Self.UserName,
		AdminIDs:   cfg.AdminIDs,
		SupportURL: cfg.SupportURL,
		Prizes:     prizes,
	}, bot.Deps{
		Quota:      quota,
		Onboarding: referrals,
		Presence:   users,
		Tutor:      tutor,
		Files:      telegram.NewDownloader(api),
		Admin:      admin,
		States:     states,
		Sessions:   broadcast.NewSessions(states),
		Dispatcher: broadcast.NewDispatcher(telegram.NewSender(api), cfg.BroadcastPacing),
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	go b.Start(api.GetUpdatesChan(u))

	sched, err := scheduler.New()
	if err != nil {
		logger.Fatal("failed to create scheduler", "error", err)
	}
	if cfg.DigestAt != nil {
		if _, err := sched.ScheduleDigest(cfg.DigestAt.Hour, cfg.DigestAt.Minute, b); err != nil {
			logger.Fatal("failed to schedule digest", "error", err)
		}
		logger.Info("admin digest scheduled", "hour", cfg.DigestAt.Hour, "minute", cfg.DigestAt.Minute)
	}
	sched.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpServer.NewRouter(handlers.NewHealthHandler(pingers, version)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server started", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	api.StopReceivingUpdates()
	b.Stop(30 * time.Second)

	if err := sched.Stop(); err != nil {
		logger.Error("scheduler shutdown failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("exited")
}
