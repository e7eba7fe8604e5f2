package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/scheduler"
)

// RoomStore - хранилище комнат с атомарным захватом по версии.
// Удаленные (tombstone) комнаты не видны ни одному запросу.
type RoomStore interface {
	Create(ctx context.Context, room *domain.Room) error
	// domain.ErrRoomNotFound, если комнаты нет или она удалена
	Get(ctx context.Context, id string) (*domain.Room, error)
	// записывает room, только если сохраненная версия равна expectedVersion;
	// иначе domain.ErrVersionConflict
	CompareAndSwap(ctx context.Context, room *domain.Room, expectedVersion int64) error
	// публичные комнаты в ожидании, новые первыми
	ListWaiting(ctx context.Context, limit int) ([]*domain.Room, error)
	// активные комнаты с наступившим дедлайном, старые дедлайны первыми
	DueRooms(ctx context.Context, now time.Time, limit int) ([]*domain.Room, error)
	ListReview(ctx context.Context, limit int) ([]*domain.Room, error)
	Stats(ctx context.Context, now time.Time) (domain.RoomStats, error)
}

// MemoryRoomStore держит комнаты в памяти процесса: тесты и одиночный инстанс без базы
type MemoryRoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{rooms: make(map[string]*domain.Room)}
}

func (s *MemoryRoomStore) Create(ctx context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		return domain.ErrVersionConflict
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryRoomStore) Get(ctx context.Context, id string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok || r.Deleted() {
		return nil, domain.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryRoomStore) CompareAndSwap(ctx context.Context, room *domain.Room, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rooms[room.ID]
	if !ok || cur.Deleted() {
		return domain.ErrRoomNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryRoomStore) ListWaiting(ctx context.Context, limit int) ([]*domain.Room, error) {
	out := s.filter(func(r *domain.Room) bool {
		return r.Status == domain.StatusWaiting && !r.Private
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *MemoryRoomStore) DueRooms(ctx context.Context, now time.Time, limit int) ([]*domain.Room, error) {
	out := s.filter(func(r *domain.Room) bool { return scheduler.Due(r, now) })
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DeadlineAt, out[j].DeadlineAt
		// без дедлайна - первыми, их нужно пометить
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	return truncate(out, limit), nil
}

func (s *MemoryRoomStore) ListReview(ctx context.Context, limit int) ([]*domain.Room, error) {
	out := s.filter(func(r *domain.Room) bool { return r.NeedsReview })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *MemoryRoomStore) Stats(ctx context.Context, now time.Time) (domain.RoomStats, error) {
	stats := domain.NewRoomStats()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.Deleted() {
			continue
		}
		stats.Counts[r.Status]++
		if r.NeedsReview {
			stats.Review++
		}
		if scheduler.Due(r, now) {
			stats.Stale[r.GameType]++
		}
	}
	return stats, nil
}

func (s *MemoryRoomStore) filter(keep func(*domain.Room) bool) []*domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Room
	for _, r := range s.rooms {
		if !r.Deleted() && keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func truncate(rooms []*domain.Room, limit int) []*domain.Room {
	if limit > 0 && len(rooms) > limit {
		return rooms[:limit]
	}
	return rooms
}
