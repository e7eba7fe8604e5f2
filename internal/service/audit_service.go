package service

import (
	"context"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/logger"
	"battle_rooms/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditStore - то, что сервису аудита нужно от хранилища
type AuditStore interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]*domain.AuditLog, error)
	GetByCategory(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error)
}

// обрабатывает логирование аудита
type AuditService struct {
	repo AuditStore
}

// создает новый сервис аудита
func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{
		repo: repository.NewAuditRepository(db),
	}
}

func NewAuditServiceWithStore(repo AuditStore) *AuditService {
	return &AuditService{repo: repo}
}

// создает новую запись в журнале аудита; ошибки только логируются
func (s *AuditService) Log(ctx context.Context, userID int64, roomID, action, category string, details map[string]interface{}) {
	log := &domain.AuditLog{
		UserID:   userID,
		RoomID:   roomID,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.Error("не удалось создать запись аудита", "error", err, "action", action, "user_id", userID, "room_id", roomID)
	}
}

// логирует событие комнаты со снимком ключевых полей
func (s *AuditService) LogRoom(ctx context.Context, userID int64, room *domain.Room, action string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["game_type"] = string(room.GameType)
	details["status"] = string(room.Status)
	details["bet"] = room.BetAmount
	details["version"] = room.Version
	details["players"] = len(room.Players)

	s.Log(ctx, userID, room.ID, action, domain.AuditCategoryPvP, details)
}

// логирует пометку комнаты на ручную проверку
func (s *AuditService) LogFlagged(ctx context.Context, room *domain.Room) {
	details := map[string]interface{}{
		"reason":    room.ReviewReason,
		"game_type": string(room.GameType),
		"version":   room.Version,
	}
	s.Log(ctx, room.OwnerUserID, room.ID, domain.AuditActionRoomFlagged, domain.AuditCategoryReview, details)
}

// возвращает историю комнаты
func (s *AuditService) GetRoomHistory(ctx context.Context, roomID string, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByRoomID(ctx, roomID, limit)
}

// возвращает последние пометки на проверку
func (s *AuditService) GetReviewLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByCategory(ctx, domain.AuditCategoryReview, limit)
}
