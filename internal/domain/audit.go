package domain

import "time"

// Логирование мастхев важных действий с комнатами
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	RoomID    string                 `db:"room_id" json:"room_id,omitempty"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Категории совершенных действий
const (
	AuditCategoryPvP    = "pvp"
	AuditCategoryReview = "review"
)

const (
	// Лобби
	AuditActionRoomCreate = "room_create"
	AuditActionRoomJoin   = "room_join"
	AuditActionRoomLeave  = "room_leave"
	AuditActionRoomDelete = "room_delete"

	// Матч
	AuditActionRoomStart  = "room_start"
	AuditActionRoomFinish = "room_finish"

	// Комната отложена на ручную проверку
	AuditActionRoomFlagged = "room_flagged"
)
