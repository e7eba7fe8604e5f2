package service

import (
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/fairness"
	"battle_rooms/internal/game"
)

// start: waiting -> active. Обязательство публикуется до первого исхода.
func (s *PvPService) start(r *domain.Room, now time.Time) error {
	if !r.Status.CanMoveTo(domain.StatusActive) {
		return domain.ErrAlreadyActive
	}
	rules, err := s.rulesFor(r)
	if err != nil {
		return err
	}
	secret, commitment, err := fairness.Commit()
	if err != nil {
		return err
	}
	r.ServerSeed = secret
	r.Metadata.ServerSeedHash = commitment
	r.Status = domain.StatusActive
	r.StartedAt = &now
	return rules.Start(r, now)
}

// finish: active -> finished, победитель и раскрытие секрета
func (s *PvPService) finish(r *domain.Room, rules game.Rules, now time.Time) error {
	if !r.Status.CanMoveTo(domain.StatusFinished) {
		return domain.ErrNotActive
	}
	winner, draw := rules.Outcome(r)
	r.WinnerUserID = winner
	r.Draw = draw
	r.Status = domain.StatusFinished
	r.FinishedAt = &now
	r.Metadata.ServerSeedReveal = fairness.Reveal(r.ServerSeed)
	return nil
}

// advance применяет результат шага правил к статусу комнаты
func (s *PvPService) advance(r *domain.Room, rules game.Rules, progress game.Progress, now time.Time) (domain.EventType, error) {
	switch progress {
	case game.Complete:
		if err := s.finish(r, rules, now); err != nil {
			return "", err
		}
		return domain.EventRoomFinished, nil
	case game.Changed:
		return domain.EventRoomUpdated, nil
	}
	return "", nil
}
