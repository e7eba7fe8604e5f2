package service

import (
	"context"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/metrics"
	"battle_rooms/internal/scheduler"

	"github.com/google/uuid"
)

// сколько комнат отдаем в лобби за раз
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type CreateRoomRequest struct {
	GameType   string         `json:"gameType"`
	BetAmount  int64          `json:"betAmount"`
	MaxPlayers int            `json:"maxPlayers"`
	Private    bool           `json:"private"`
	Invited    []int64        `json:"invited"`
	Options    domain.Options `json:"options"`
}

// Create создает комнату в статусе waiting, владелец сразу становится игроком
func (s *PvPService) Create(ctx context.Context, ownerID int64, req CreateRoomRequest) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction("create", err) }()

	gt, err := domain.ParseGameType(req.GameType)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateBet(req.BetAmount); err != nil {
		return nil, err
	}
	rules, err := s.rules.Get(gt)
	if err != nil {
		return nil, err
	}
	maxPlayers, opts, err := rules.Configure(req.MaxPlayers, req.Options)
	if err != nil {
		return nil, err
	}
	state, err := domain.NewGameState(gt)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	room = &domain.Room{
		ID:          uuid.NewString(),
		GameType:    gt,
		Status:      domain.StatusWaiting,
		OwnerUserID: ownerID,
		BetAmount:   req.BetAmount,
		MaxPlayers:  maxPlayers,
		Private:     req.Private,
		Options:     opts,
		Metadata:    domain.Metadata{State: state},
		Version:     1,
		CreatedAt:   now,
	}
	for _, id := range req.Invited {
		if id != ownerID && !room.IsInvited(id) {
			room.Invited = append(room.Invited, id)
		}
	}
	owner := domain.Player{UserID: ownerID, JoinedAt: now}
	rules.Seat(room, &owner)
	room.Players = []domain.Player{owner}

	if err := room.Validate(); err != nil {
		return nil, err
	}
	if err := s.settle.Reserve(ctx, ownerID, room.ID, room.BetAmount); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, room); err != nil {
		s.refund(ctx, ownerID, room)
		return nil, err
	}

	s.pub.Publish(domain.NewEvent(domain.EventRoomUpdated, room, now))
	s.log.Info("room created", "room_id", room.ID, "game_type", gt, "owner", ownerID, "bet", room.BetAmount)
	if s.audit != nil {
		s.audit.LogRoom(ctx, ownerID, room, domain.AuditActionRoomCreate, nil)
	}
	return room, nil
}

// Get возвращает комнату; если ее дедлайн уже наступил, сначала разрешает его
func (s *PvPService) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if scheduler.Due(room, s.clock.Now()) {
		if _, err := s.ResolveDue(ctx, roomID); err != nil {
			s.log.Warn("lazy resolve failed", "room_id", roomID, "error", err)
		}
		return s.store.Get(ctx, roomID)
	}
	return room, nil
}

// Snapshot - клиентское представление комнаты с serverNow
func (s *PvPService) Snapshot(ctx context.Context, roomID string) (domain.Snapshot, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.NewSnapshot(room, s.clock.Now()), nil
}

// List - публичные комнаты, ожидающие игроков
func (s *PvPService) List(ctx context.Context, limit int) ([]*domain.Room, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.ListWaiting(ctx, limit)
}

func (s *PvPService) Join(ctx context.Context, roomID string, userID int64) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction("join", err) }()
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	cur, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.settle.Reserve(ctx, userID, roomID, cur.BetAmount); err != nil {
		return nil, err
	}

	room, _, err = s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		if r.Status != domain.StatusWaiting {
			return "", domain.ErrNotJoinable
		}
		if r.IsMember(userID) {
			return "", domain.ErrAlreadyMember
		}
		if r.Private && !r.IsInvited(userID) {
			return "", domain.ErrNotInvited
		}
		if len(r.Players) >= r.MaxPlayers {
			return "", domain.ErrRoomFull
		}
		rules, err := s.rulesFor(r)
		if err != nil {
			return "", err
		}
		p := domain.Player{UserID: userID, JoinedAt: now}
		rules.Seat(r, &p)
		r.Players = append(r.Players, p)
		return domain.EventRoomUpdated, nil
	})
	if err != nil {
		s.refund(ctx, userID, cur)
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogRoom(ctx, userID, room, domain.AuditActionRoomJoin, nil)
	}
	return room, nil
}

// Invite добавляет пользователя в список приглашенных; только владелец
func (s *PvPService) Invite(ctx context.Context, roomID string, ownerID, targetID int64) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction("invite", err) }()
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, _, err = s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		if r.OwnerUserID != ownerID {
			return "", domain.ErrNotOwner
		}
		if r.Status != domain.StatusWaiting {
			return "", domain.ErrNotWaiting
		}
		if r.IsMember(targetID) {
			return "", domain.ErrAlreadyMember
		}
		if r.IsInvited(targetID) {
			return "", nil
		}
		r.Invited = append(r.Invited, targetID)
		return domain.EventRoomUpdated, nil
	})
	return room, err
}

// SetReady меняет готовность; когда все (>=2) готовы, комната стартует
func (s *PvPService) SetReady(ctx context.Context, roomID string, userID int64, ready bool) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction("ready", err) }()
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, _, err = s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		p := r.Player(userID)
		if p == nil {
			return "", domain.ErrNotMember
		}
		if err := requireWaiting(r); err != nil {
			return "", err
		}
		if p.Ready == ready {
			return "", nil
		}
		p.Ready = ready
		if ready && len(r.Players) >= 2 && r.AllReady() {
			if err := s.start(r, now); err != nil {
				return "", err
			}
			return domain.EventRoomStarted, nil
		}
		return domain.EventRoomUpdated, nil
	})
	return room, err
}

// Start - явный старт владельцем
func (s *PvPService) Start(ctx context.Context, roomID string, ownerID int64) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction("start", err) }()
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, _, err = s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		if r.OwnerUserID != ownerID {
			return "", domain.ErrNotOwner
		}
		if err := requireWaiting(r); err != nil {
			return "", err
		}
		if len(r.Players) < 2 {
			return "", domain.ErrNeedTwoPlayers
		}
		if !r.AllReady() {
			return "", domain.ErrNotAllReady
		}
		if err := s.start(r, now); err != nil {
			return "", err
		}
		return domain.EventRoomStarted, nil
	})
	return room, err
}

// Leave: выход до старта. Владелец передает комнату следующему,
// последний вышедший удаляет комнату.
func (s *PvPService) Leave(ctx context.Context, roomID string, userID int64) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction("leave", err) }()
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, ev, err := s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		if !r.IsMember(userID) {
			return "", domain.ErrNotMember
		}
		if r.Status != domain.StatusWaiting {
			return "", domain.ErrNotWaiting
		}
		players := r.Players[:0]
		for _, p := range r.Players {
			if p.UserID != userID {
				players = append(players, p)
			}
		}
		r.Players = players
		if len(r.Players) == 0 {
			r.DeletedAt = &now
			return domain.EventRoomDeleted, nil
		}
		if r.OwnerUserID == userID {
			r.OwnerUserID = r.Players[0].UserID
		}
		return domain.EventRoomUpdated, nil
	})
	if err != nil {
		return nil, err
	}
	// при удалении ставку вернул afterCommit
	if ev != domain.EventRoomDeleted {
		s.refund(ctx, userID, room)
	}
	if s.audit != nil {
		s.audit.LogRoom(ctx, userID, room, domain.AuditActionRoomLeave, nil)
	}
	return room, nil
}

// Delete - только владелец и только пока комната ждет игроков
func (s *PvPService) Delete(ctx context.Context, roomID string, ownerID int64) (err error) {
	defer func() { metrics.ObserveAction("delete", err) }()
	if err := validateRoomID(roomID); err != nil {
		return err
	}
	_, _, err = s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		if r.OwnerUserID != ownerID {
			return "", domain.ErrNotOwner
		}
		if r.Status != domain.StatusWaiting {
			return "", domain.ErrNotWaiting
		}
		r.DeletedAt = &now
		return domain.EventRoomDeleted, nil
	})
	return err
}

func requireWaiting(r *domain.Room) error {
	switch r.Status {
	case domain.StatusWaiting:
		return nil
	case domain.StatusActive:
		return domain.ErrAlreadyActive
	}
	return domain.ErrNotWaiting
}
