package service

import (
	"context"
	"errors"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/fairness"
	"battle_rooms/internal/game"
	"battle_rooms/internal/metrics"
	"battle_rooms/internal/scheduler"
)

func (s *PvPService) Roll(ctx context.Context, roomID string, userID int64) (*domain.Room, error) {
	return s.act(ctx, roomID, userID, game.ActionRoll)
}

func (s *PvPService) Hit(ctx context.Context, roomID string, userID int64) (*domain.Room, error) {
	return s.act(ctx, roomID, userID, game.ActionHit)
}

func (s *PvPService) Stand(ctx context.Context, roomID string, userID int64) (*domain.Room, error) {
	return s.act(ctx, roomID, userID, game.ActionStand)
}

func (s *PvPService) act(ctx context.Context, roomID string, userID int64, action game.Action) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction(string(action), err) }()
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, _, err = s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		rules, err := s.activeRules(r, userID)
		if err != nil {
			return "", err
		}
		if !r.GameType.TurnBased() {
			return "", domain.ErrWrongGameType
		}
		progress, err := rules.Act(r, userID, action, now)
		if err != nil {
			return "", err
		}
		return s.advance(r, rules, progress, now)
	})
	return room, err
}

// Reveal раскрывает монетку, если revealAt уже наступил
func (s *PvPService) Reveal(ctx context.Context, roomID string, userID int64) (room *domain.Room, err error) {
	defer func() { metrics.ObserveAction("reveal", err) }()
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, _, err = s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		rules, err := s.activeRules(r, userID)
		if err != nil {
			return "", err
		}
		if r.GameType != domain.GameCoinflip {
			return "", domain.ErrWrongGameType
		}
		progress, err := rules.Resolve(r, now)
		if err != nil {
			return "", err
		}
		if progress == game.Unchanged {
			return "", domain.ErrRevealNotDue
		}
		return s.advance(r, rules, progress, now)
	})
	return room, err
}

// общая проверка ходов: участник, комната активна и не на проверке
func (s *PvPService) activeRules(r *domain.Room, userID int64) (game.Rules, error) {
	if !r.IsMember(userID) {
		return nil, domain.ErrNotMember
	}
	if r.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}
	if r.NeedsReview {
		return nil, domain.ErrUnderReview
	}
	return s.rulesFor(r)
}

// ResolveDue applies every deadline of the room that has elapsed. It is
// what the sweep runs, and it is safe to call any number of times: a room
// that is not due is left untouched and produces no event.
func (s *PvPService) ResolveDue(ctx context.Context, roomID string) (domain.EventType, error) {
	_, ev, err := s.mutate(ctx, roomID, func(r *domain.Room, now time.Time) (domain.EventType, error) {
		if !scheduler.Due(r, now) {
			return "", nil
		}
		rules, err := s.rulesFor(r)
		if err != nil {
			return "", err
		}
		changed := false
		for i := 0; i < maxResolveSteps; i++ {
			progress, err := rules.Resolve(r, now)
			if err != nil {
				return "", err
			}
			if progress == game.Complete {
				return s.advance(r, rules, progress, now)
			}
			if progress == game.Unchanged {
				break
			}
			changed = true
		}
		if !changed {
			// комната числится просроченной, но правилам нечего делать
			return "", domain.ErrInconsistent
		}
		return domain.EventRoomUpdated, nil
	})
	return ev, err
}

type VerifiedDecision struct {
	game.Decision
	Recomputed int  `json:"recomputed"`
	Match      bool `json:"match"`
}

type VerifyReport struct {
	RoomID           string             `json:"roomId"`
	GameType         domain.GameType    `json:"gameType"`
	ServerSeedHash   string             `json:"serverSeedHash"`
	ServerSeedReveal string             `json:"serverSeedReveal"`
	Valid            bool               `json:"valid"`
	Decisions        []VerifiedDecision `json:"decisions"`
}

// Verify пересчитывает обязательство и все исходы завершенной комнаты
func (s *PvPService) Verify(ctx context.Context, roomID string) (*VerifyReport, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	r, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.StatusFinished {
		return nil, domain.ErrNotFinished
	}
	rules, err := s.rules.Get(r.GameType)
	if err != nil {
		return nil, err
	}

	seed := r.Metadata.ServerSeedReveal
	report := &VerifyReport{
		RoomID:           r.ID,
		GameType:         r.GameType,
		ServerSeedHash:   r.Metadata.ServerSeedHash,
		ServerSeedReveal: seed,
		Valid:            fairness.Verify(seed, r.Metadata.ServerSeedHash),
	}
	for _, d := range rules.Decisions(r) {
		got := fairness.Derive(seed, r.ID, d.Nonce, d.Range) + d.Offset
		vd := VerifiedDecision{Decision: d, Recomputed: got, Match: got == d.Value}
		report.Valid = report.Valid && vd.Match
		report.Decisions = append(report.Decisions, vd)
	}
	return report, nil
}

// IsUnderReview - ошибка означает, что комната ушла на ручную проверку
func IsUnderReview(err error) bool {
	return errors.Is(err, domain.ErrUnderReview)
}
