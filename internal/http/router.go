package http

import (
	"net/http"
	"time"

	"battle_rooms/internal/config"
	"battle_rooms/internal/http/handlers"
	"battle_rooms/internal/http/middleware"
	"battle_rooms/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewEngine - gin с CORS для фронта на другом домене
func NewEngine(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Upgrade", "Connection"},
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))
	return r
}

// RegisterRoutes вешает PvP API, websocket и служебные эндпоинты
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, wsh *ws.WSHandler, cfg *config.Config, version string) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// вход через Telegram WebApp, только если задан токен бота
	if cfg.BotToken != "" {
		r.POST("/auth/telegram", middleware.RateLimit("auth", 10, time.Minute), handlers.TelegramLogin(cfg.BotToken))
	}

	auth := r.Group("/", middleware.Auth())

	pvp := auth.Group("/pvp")
	pvp.GET("/ws", wsh.HandleWS())
	pvp.GET("/limits", h.GameLimits)
	pvp.GET("", h.ListRooms)
	pvp.GET("/:id", h.GetRoom)
	pvp.GET("/:id/verify", h.VerifyRoom)
	pvp.GET("/:id/history", h.RoomHistory)

	// мутации ограничены по частоте на пользователя
	mut := pvp.Group("", middleware.RateLimit("pvp", 30, 10*time.Second))
	mut.POST("", h.CreateRoom)
	mut.POST("/:id/join", h.JoinRoom())
	mut.POST("/:id/invite", h.InviteToRoom)
	mut.POST("/:id/ready", h.SetReady)
	mut.POST("/:id/start", h.StartRoom())
	mut.POST("/:id/leave", h.LeaveRoom())
	mut.DELETE("/:id", h.DeleteRoom)
	mut.POST("/:id/roll", h.Roll())
	mut.POST("/:id/hit", h.Hit())
	mut.POST("/:id/stand", h.Stand())
	mut.POST("/:id/reveal", h.Reveal())

	admin := auth.Group("/admin", middleware.AdminOnly(cfg.AdminUserIDs))
	admin.GET("/pvp/health", h.PvPHealth)
	admin.GET("/pvp/review", h.ReviewRooms)
}
