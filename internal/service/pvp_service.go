package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/game"
	"battle_rooms/internal/logger"
	"battle_rooms/internal/metrics"
	"battle_rooms/internal/repository"
	"battle_rooms/internal/scheduler"

	"github.com/google/uuid"
)

// сколько раз повторяем проигранный CAS, прежде чем отдать conflict
const maxClaimAttempts = 5

// потолок шагов одного разрешения дедлайнов; на практике хватает двух
const maxResolveSteps = 8

// Publisher - широковещательный шлюз комнат
type Publisher interface {
	Publish(ev domain.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.Event) {}

// лимиты ставок
type GameLimits struct {
	MinBet int64
	MaxBet int64
}

var DefaultLimits = GameLimits{MinBet: 10, MaxBet: 100000}

// PvPService - движок PvP комнат: жизненный цикл, ходы и разрешение дедлайнов.
// Любое изменение комнаты проходит через mutate.
type PvPService struct {
	store    repository.RoomStore
	rules    *game.Registry
	sched    *scheduler.Scheduler
	clock    scheduler.Clock
	pub      Publisher
	limits   GameLimits
	locks    *keyedMutex
	log      *slog.Logger
	settle   Settlement
	audit    *AuditService
	mu       sync.RWMutex
	onReview func(room *domain.Room)
}

func NewPvPService(store repository.RoomStore, sched *scheduler.Scheduler, pub Publisher) *PvPService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &PvPService{
		store:  store,
		rules:  game.NewRegistry(sched),
		sched:  sched,
		clock:  scheduler.SystemClock{},
		pub:    pub,
		limits: DefaultLimits,
		locks:  newKeyedMutex(),
		log:    logger.Component("pvp"),
		settle: NopSettlement{},
	}
}

func (s *PvPService) SetClock(c scheduler.Clock) { s.clock = c }
func (s *PvPService) SetLimits(l GameLimits) { s.limits = l }
func (s *PvPService) SetSettlement(st Settlement) { s.settle = st }
func (s *PvPService) SetAudit(a *AuditService) { s.audit = a }
func (s *PvPService) Now() time.Time { return s.clock.Now() }
func (s *PvPService) Store() repository.RoomStore { return s.store }
func (s *PvPService) Scheduler() *scheduler.Scheduler { return s.sched }

// SetReviewNotifyCallback устанавливает callback для уведомления о комнатах на ручной проверке
func (s *PvPService) SetReviewNotifyCallback(callback func(room *domain.Room)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReview = callback
}

// проверяет, находится ли ставка в разрешенных пределах
func (s *PvPService) ValidateBet(bet int64) error {
	if bet <= 0 || bet < s.limits.MinBet || (s.limits.MaxBet > 0 && bet > s.limits.MaxBet) {
		return domain.ErrInvalidBet
	}
	return nil
}

func (s *PvPService) GetLimits() GameLimits {
	return s.limits
}

func validateRoomID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrInvalidRoomID
	}
	return nil
}

// mutation меняет копию комнаты. Пустой тип события - ничего не менять и не писать.
type mutation func(room *domain.Room, now time.Time) (domain.EventType, error)

type claim struct {
	prev    *domain.Room
	room    *domain.Room
	event   domain.EventType
	flagged bool
}

// mutate is the single claim primitive shared by handlers and the sweep:
// load, apply fn to a copy, compare-and-swap on version, publish. The
// per-room lock keeps CAS and publish of this instance in version order;
// other instances are fenced by the version check.
func (s *PvPService) mutate(ctx context.Context, roomID string, fn mutation) (*domain.Room, domain.EventType, error) {
	ctx = logger.WithRoom(ctx, roomID)
	c, err := s.claim(ctx, roomID, fn)
	if err != nil {
		return nil, "", err
	}
	if c.event == "" {
		return c.room, "", nil
	}
	s.afterCommit(ctx, c)
	if c.flagged {
		return c.room, c.event, domain.ErrUnderReview
	}
	return c.room, c.event, nil
}

func (s *PvPService) claim(ctx context.Context, roomID string, fn mutation) (claim, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		cur, err := s.store.Get(ctx, roomID)
		if err != nil {
			return claim{}, err
		}
		now := s.clock.Now()
		next := cur.Clone()

		ev, err := fn(next, now)
		reason := fmt.Sprintf("inconsistent %s metadata at version %d", cur.GameType, cur.Version)
		if err == nil && next.Status != cur.Status && !cur.Status.CanMoveTo(next.Status) {
			// статус только растет на один шаг, откат не записываем
			err = domain.ErrInconsistent
			reason = fmt.Sprintf("status %s -> %s at version %d", cur.Status, next.Status, cur.Version)
		}
		flagged := false
		switch {
		case errors.Is(err, domain.ErrInconsistent):
			// частичные изменения выбрасываем, комнату только помечаем
			next = cur.Clone()
			next.NeedsReview = true
			next.ReviewReason = reason
			ev = domain.EventRoomUpdated
			flagged = true
		case err != nil:
			return claim{}, err
		}
		if ev == "" {
			return claim{room: cur}, nil
		}

		next.Version = cur.Version + 1
		scheduler.Apply(next)
		if err := next.Validate(); err != nil {
			return claim{}, fmt.Errorf("refusing to persist: %w", err)
		}

		err = s.store.CompareAndSwap(ctx, next, cur.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.ClaimConflicts.Inc()
			continue
		}
		if err != nil {
			return claim{}, err
		}

		s.pub.Publish(domain.NewEvent(ev, next, now))
		metrics.EventsPublished.WithLabelValues(string(ev)).Inc()
		return claim{prev: cur, room: next, event: ev, flagged: flagged}, nil
	}
	return claim{}, domain.ErrConflict
}

// побочные эффекты после записи: аудит, расчеты, уведомления
func (s *PvPService) afterCommit(ctx context.Context, c claim) {
	room := c.room
	log := logger.WithContext(ctx, s.log)
	if c.flagged {
		log.Warn("room flagged for review", "version", room.Version, "reason", room.ReviewReason)
		if s.audit != nil {
			s.audit.LogFlagged(ctx, room)
		}
		s.mu.RLock()
		cb := s.onReview
		s.mu.RUnlock()
		if cb != nil {
			go cb(room.Clone())
		}
		return
	}

	switch c.event {
	case domain.EventRoomStarted:
		log.Info("room started", "game_type", room.GameType, "players", len(room.Players))
		if s.audit != nil {
			s.audit.LogRoom(ctx, room.OwnerUserID, room, domain.AuditActionRoomStart, map[string]interface{}{
				"server_seed_hash": room.Metadata.ServerSeedHash,
			})
		}
	case domain.EventRoomFinished:
		s.settleFinished(ctx, room)
		log.Info("room finished", "version", room.Version, "winner", room.WinnerUserID, "draw", room.Draw)
		if s.audit != nil {
			details := map[string]interface{}{"draw": room.Draw}
			if room.WinnerUserID != nil {
				details["winner_user_id"] = *room.WinnerUserID
			}
			s.audit.LogRoom(ctx, room.OwnerUserID, room, domain.AuditActionRoomFinish, details)
		}
	case domain.EventRoomDeleted:
		// ставки оставшихся в комнате возвращаются
		for _, p := range c.prev.Players {
			s.refund(ctx, p.UserID, room)
		}
		log.Info("room deleted")
		if s.audit != nil {
			s.audit.LogRoom(ctx, room.OwnerUserID, room, domain.AuditActionRoomDelete, nil)
		}
	}
}

func (s *PvPService) settleFinished(ctx context.Context, room *domain.Room) {
	if room.Draw || room.WinnerUserID == nil {
		for _, p := range room.Players {
			s.refund(ctx, p.UserID, room)
		}
		return
	}
	pot := room.BetAmount * int64(len(room.Players))
	if err := s.settle.Payout(ctx, *room.WinnerUserID, room.ID, pot); err != nil {
		logger.WithContext(ctx, s.log).Error("payout failed", "winner", *room.WinnerUserID, "error", err)
	}
}

func (s *PvPService) refund(ctx context.Context, userID int64, room *domain.Room) {
	if err := s.settle.Refund(ctx, userID, room.ID, room.BetAmount); err != nil {
		logger.WithContext(ctx, s.log).Error("refund failed", "user_id", userID, "error", err)
	}
}

func (s *PvPService) rulesFor(room *domain.Room) (game.Rules, error) {
	rules, err := s.rules.Get(room.GameType)
	if err != nil {
		// тип игры в хранилище не распознан
		return nil, domain.ErrInconsistent
	}
	return rules, nil
}
