package handlers

import (
	"errors"
	"net/http"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/logger"

	"github.com/gin-gonic/gin"
)

// статус HTTP для кода отказа
func statusFor(code string) int {
	switch code {
	case "invalid_room_id", "invalid_bet", "invalid_game_type", "invalid_options":
		return http.StatusBadRequest
	case "not_member", "not_owner", "not_invited":
		return http.StatusForbidden
	case "room_not_found":
		return http.StatusNotFound
	case "reveal_not_due":
		return http.StatusTooEarly
	}
	return http.StatusConflict
}

// writeError отдает {"error": code, "message": text}
func writeError(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		c.JSON(statusFor(de.Code), gin.H{"error": de.Code, "message": de.Message})
		return
	}
	logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal error"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": message})
}
