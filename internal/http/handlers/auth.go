package handlers

import (
	"net/http"
	"time"

	"battle_rooms/internal/http/middleware"
	"battle_rooms/internal/logger"

	"github.com/gin-gonic/gin"
)

const sessionTTL = 24 * time.Hour

// TelegramLogin обменивает init_data мини-аппа на JWT сессии
func TelegramLogin(botToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			InitData string `json:"initData" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "initData is required")
			return
		}

		userID, err := middleware.TelegramUserID(req.InitData, botToken, time.Now())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": err.Error()})
			return
		}

		token, err := middleware.CreateJWT(userID, sessionTTL)
		if err != nil {
			logger.Error("failed to issue session token", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "failed to issue token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"userId":    userID,
			"expiresAt": time.Now().Add(sessionTTL).UnixMilli(),
		})
	}
}
