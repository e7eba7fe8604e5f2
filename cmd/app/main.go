package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"battle_rooms/internal/bot"
	"battle_rooms/internal/config"
	"battle_rooms/internal/db"
	httpServer "battle_rooms/internal/http"
	"battle_rooms/internal/http/handlers"
	"battle_rooms/internal/http/middleware"
	"battle_rooms/internal/logger"
	"battle_rooms/internal/repository"
	"battle_rooms/internal/scheduler"
	"battle_rooms/internal/service"
	"battle_rooms/internal/ws"

	"github.com/redis/go-redis/v9"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg := config.Load()

	// Инициализация структурированного логгера
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set - all authenticated endpoints will reject requests")
	}
	middleware.InitJWT(cfg.JWTSecret)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Хранилище комнат: Postgres в проде, память для локального запуска
	var (
		store repository.RoomStore
		audit *service.AuditService
	)
	if cfg.UseMemoryStore {
		log.Warn("DATABASE_URL not set - rooms are kept in memory, single instance only")
		store = repository.NewMemoryRoomStore()
		audit = service.NewAuditServiceWithStore(repository.NewMemoryAuditStore())
	} else {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("migrations failed", "error", err)
		}
		dbPool := db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
		store = repository.NewRoomRepository(dbPool)
		audit = service.NewAuditService(dbPool)
	}

	hub := ws.NewHub()

	// Redis: лимиты запросов и ретрансляция событий между инстансами
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Error("redis unavailable - rate limits and event relay disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			defer rdb.Close()
			middleware.SetRateLimitClient(rdb)
			relay := ws.NewRedisRelay(rdb, hub)
			hub.SetRelay(relay)
			go relay.Run(ctx)
			log.Info("redis connected", "addr", cfg.RedisAddr, "relay_origin", relay.Origin())
		}
	}

	sched := scheduler.New(scheduler.Config{
		RevealDelay:  cfg.RevealDelay,
		AdvanceDelay: cfg.AdvanceDelay,
		TurnTimeout:  cfg.TurnTimeout,
	})
	pvp := service.NewPvPService(store, sched, hub)
	pvp.SetLimits(service.GameLimits{MinBet: cfg.MinBet, MaxBet: cfg.MaxBet})
	pvp.SetAudit(audit)

	sweeper := service.NewSweeper(pvp, cfg.SweepInterval, cfg.SweepBatch)
	health := service.NewHealthService(pvp, sweeper)

	// Запуск админ бота ПЕРЕД sweep чтобы callback был установлен
	var adminBot *bot.AdminBot
	if cfg.AdminBotEnabled && len(cfg.AdminTelegramIDs) > 0 && cfg.BotToken != "" {
		var err error
		adminBot, err = bot.NewAdminBot(cfg.BotToken, pvp, health, audit, cfg.AdminTelegramIDs)
		if err != nil {
			log.Error("failed to start admin bot", "error", err)
		} else {
			go adminBot.Start()
			log.Info("admin bot started", "admin_ids", cfg.AdminTelegramIDs)

			// Уведомление всем админам бота о комнатах на ручной проверке
			pvp.SetReviewNotifyCallback(adminBot.NotifyReview)
		}
	}

	sweeper.Start()
	log.Info("stale sweep started", "interval", cfg.SweepInterval, "batch", cfg.SweepBatch)

	r := httpServer.NewEngine(cfg)
	httpServer.RegisterRoutes(r,
		handlers.NewHandler(pvp, health, audit),
		ws.NewWSHandler(hub, pvp, cfg.AllowedOrigins),
		cfg, Version)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Сначала sweep: дедлайны подхватит следующий инстанс
	sweeper.Stop()

	// Плавная остановка бота
	if adminBot != nil {
		adminBot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}
	stop()

	log.Info("server exited")
}
