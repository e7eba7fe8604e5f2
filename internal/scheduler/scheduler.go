// Package scheduler owns the deadline arithmetic of PvP rooms. Every timer is
// persisted on the room itself (revealAt / advanceAt, mirrored into
// deadlineAt), so nothing lives only in process memory and any instance can
// pick a due room up after a restart.
package scheduler

import (
	"time"

	"battle_rooms/internal/domain"
)

// значения по умолчанию
const (
	DefaultRevealDelay  = 3 * time.Second
	DefaultAdvanceDelay = 2 * time.Second
	DefaultTurnTimeout  = 20 * time.Second
)

// минимальный шаг, на который новый advanceAt обязан обогнать предыдущий
const minStep = time.Millisecond

type Config struct {
	// задержка между ходом и моментом, когда результат становится виден
	RevealDelay time.Duration
	// пауза после раскрытия перед передачей хода
	AdvanceDelay time.Duration
	// сколько ждем хода игрока, потом сервер играет за него
	TurnTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RevealDelay:  DefaultRevealDelay,
		AdvanceDelay: DefaultAdvanceDelay,
		TurnTimeout:  DefaultTurnTimeout,
	}
}

type Scheduler struct {
	cfg Config
}

func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.RevealDelay <= 0 {
		cfg.RevealDelay = def.RevealDelay
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = def.AdvanceDelay
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = def.TurnTimeout
	}
	return &Scheduler{cfg: cfg}
}

func (s *Scheduler) Config() Config { return s.cfg }

// CoinRevealAt - момент раскрытия монетки
func (s *Scheduler) CoinRevealAt(now time.Time) time.Time {
	return now.Add(s.cfg.RevealDelay)
}

// TurnDeadline returns the idle deadline of a fresh turn phase. prev is the
// advanceAt of the phase being replaced, if any.
func (s *Scheduler) TurnDeadline(now time.Time, prev *time.Time) time.Time {
	return later(now.Add(s.cfg.TurnTimeout), prev)
}

// RevealDeadlines returns revealAt and advanceAt for a reveal phase that
// starts at now.
func (s *Scheduler) RevealDeadlines(now time.Time, prev *time.Time) (revealAt, advanceAt time.Time) {
	revealAt = now.Add(s.cfg.RevealDelay)
	advanceAt = later(revealAt.Add(s.cfg.AdvanceDelay), prev)
	return revealAt, advanceAt
}

// advanceAt комнаты строго возрастает
func later(t time.Time, prev *time.Time) time.Time {
	if prev != nil && !t.After(*prev) {
		return prev.Add(minStep)
	}
	return t
}

// NextDeadline выводит deadlineAt из метаданных: revealAt монетки или
// advanceAt текущей фазы хода. nil, если комнате ничего не грозит.
func NextDeadline(r *domain.Room) *time.Time {
	if r.Status != domain.StatusActive {
		return nil
	}
	switch st := r.Metadata.State.(type) {
	case *domain.CoinflipState:
		if st.PendingCoin != nil {
			t := st.PendingCoin.RevealAt
			return &t
		}
	default:
		if ts := domain.TurnOf(st); ts != nil && ts.Pending != nil {
			t := ts.Pending.AdvanceAt
			return &t
		}
	}
	return nil
}

// Apply синхронизирует индексируемый deadlineAt с метаданными
func Apply(r *domain.Room) {
	r.DeadlineAt = NextDeadline(r)
}

// Due reports whether the sweep should try to resolve the room at now.
// Active rooms without any deadline are due too: they can only be stuck, and
// resolution flags them for review.
func Due(r *domain.Room, now time.Time) bool {
	if r.Status != domain.StatusActive || r.Deleted() || r.NeedsReview {
		return false
	}
	if r.DeadlineAt == nil {
		return true
	}
	return !r.DeadlineAt.After(now)
}
