package ws

import (
	"net/http"
	"slices"

	"battle_rooms/internal/http/middleware"
	"battle_rooms/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// содержит зависимости для обработки WebSocket
type WSHandler struct {
	Hub      *Hub
	Rooms    RoomSource
	upgrader websocket.Upgrader
}

// allowedOrigins пустой - разрешены все origin
func NewWSHandler(hub *Hub, rooms RoomSource, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		Hub:   hub,
		Rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// HandleWS поднимает соединение; пользователь уже проверен middleware.Auth
func (h *WSHandler) HandleWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "token required"})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "user_id", userID, "error", err)
			return
		}

		client := NewClient(userID, conn, h.Hub, h.Rooms)
		go client.Run()
	}
}
