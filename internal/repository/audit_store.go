package repository

import (
	"context"
	"sync"
	"time"

	"battle_rooms/internal/domain"
)

// MemoryAuditStore - журнал аудита в памяти для запуска без базы
type MemoryAuditStore struct {
	mu     sync.RWMutex
	nextID int64
	logs   []*domain.AuditLog
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Create(ctx context.Context, log *domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry := *log
	entry.ID = s.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, &entry)
	return nil
}

// история комнаты в хронологическом порядке, как у AuditRepository
func (s *MemoryAuditStore) GetByRoomID(ctx context.Context, roomID string, limit int) ([]*domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range s.logs {
		if l.RoomID == roomID {
			out = append(out, l)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// новые первыми
func (s *MemoryAuditStore) GetByCategory(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.AuditLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].Category == category {
			out = append(out, s.logs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
