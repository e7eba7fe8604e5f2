package handlers

import (
	"context"
	"net/http"
	"strconv"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/http/middleware"
	"battle_rooms/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	PvP    *service.PvPService
	Health *service.HealthService
	Audit  *service.AuditService
}

func NewHandler(pvp *service.PvPService, health *service.HealthService, audit *service.AuditService) *Handler {
	return &Handler{PvP: pvp, Health: health, Audit: audit}
}

func getUserID(c *gin.Context) (int64, bool) {
	return middleware.UserID(c)
}

func (h *Handler) snapshot(c *gin.Context, status int, room *domain.Room) {
	c.JSON(status, domain.NewSnapshot(room, h.PvP.Now()))
}

// roomAction - общий обработчик операций вида POST /pvp/:id/<action>
func (h *Handler) roomAction(op func(ctx context.Context, roomID string, userID int64) (*domain.Room, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "user not found"})
			return
		}
		room, err := op(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		h.snapshot(c, http.StatusOK, room)
	}
}

func (h *Handler) CreateRoom(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "user not found"})
		return
	}
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	room, err := h.PvP.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.snapshot(c, http.StatusCreated, room)
}

// лобби: публичные комнаты в ожидании
func (h *Handler) ListRooms(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rooms, err := h.PvP.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	now := h.PvP.Now()
	out := make([]domain.Snapshot, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, domain.NewSnapshot(r, now))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out, "serverNow": now.UnixMilli()})
}

func (h *Handler) GetRoom(c *gin.Context) {
	snap, err := h.PvP.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) JoinRoom() gin.HandlerFunc  { return h.roomAction(h.PvP.Join) }
func (h *Handler) LeaveRoom() gin.HandlerFunc { return h.roomAction(h.PvP.Leave) }
func (h *Handler) StartRoom() gin.HandlerFunc { return h.roomAction(h.PvP.Start) }
func (h *Handler) Roll() gin.HandlerFunc      { return h.roomAction(h.PvP.Roll) }
func (h *Handler) Hit() gin.HandlerFunc       { return h.roomAction(h.PvP.Hit) }
func (h *Handler) Stand() gin.HandlerFunc     { return h.roomAction(h.PvP.Stand) }
func (h *Handler) Reveal() gin.HandlerFunc    { return h.roomAction(h.PvP.Reveal) }

func (h *Handler) SetReady(c *gin.Context) {
	var req struct {
		Ready *bool `json:"ready"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Ready == nil {
		badRequest(c, "ready is required")
		return
	}
	h.roomAction(func(ctx context.Context, roomID string, userID int64) (*domain.Room, error) {
		return h.PvP.SetReady(ctx, roomID, userID, *req.Ready)
	})(c)
}

func (h *Handler) InviteToRoom(c *gin.Context) {
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 {
		badRequest(c, "userId is required")
		return
	}
	h.roomAction(func(ctx context.Context, roomID string, ownerID int64) (*domain.Room, error) {
		return h.PvP.Invite(ctx, roomID, ownerID, req.UserID)
	})(c)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "user not found"})
		return
	}
	if err := h.PvP.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// проверка честности завершенной комнаты
func (h *Handler) VerifyRoom(c *gin.Context) {
	report, err := h.PvP.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// история комнаты из журнала аудита
func (h *Handler) RoomHistory(c *gin.Context) {
	if h.Audit == nil {
		c.JSON(http.StatusOK, gin.H{"history": []interface{}{}})
		return
	}
	if _, err := h.PvP.Get(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	logs, err := h.Audit.GetRoomHistory(c.Request.Context(), c.Param("id"), 100)
	if err != nil {
		writeError(c, err)
		return
	}
	history := make([]map[string]interface{}, 0, len(logs))
	for _, l := range logs {
		history = append(history, map[string]interface{}{
			"action":  l.Action,
			"userId":  l.UserID,
			"details": l.Details,
			"date":    l.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) GameLimits(c *gin.Context) {
	limits := h.PvP.GetLimits()
	c.JSON(http.StatusOK, gin.H{
		"minBet":    limits.MinBet,
		"maxBet":    limits.MaxBet,
		"gameTypes": domain.GameTypes,
	})
}
