package game

import (
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/scheduler"
)

type Action string

const (
	ActionRoll  Action = "roll"
	ActionHit   Action = "hit"
	ActionStand Action = "stand"
)

// Progress - что произошло с комнатой после шага правил
type Progress int

const (
	// рано, ничего не поменялось
	Unchanged Progress = iota
	// состояние сдвинулось, матч продолжается
	Changed
	// матч окончен, можно считать победителя
	Complete
)

// Decision - одно выведенное из секрета значение, для проверки честности
type Decision struct {
	UserID int64  `json:"userId"`
	Nonce  uint64 `json:"nonce"`
	Value  int    `json:"value"`
	// значение = Derive(secret, roomId, nonce, Range) + Offset
	Range  int `json:"range"`
	Offset int `json:"offset"`
}

// Rules are the pure per-game-type rules. They only touch the room passed in;
// persistence, locking and events are the caller's business. Every method
// that returns an error leaves the room as it found it or the caller throws
// the copy away.
type Rules interface {
	Type() domain.GameType

	// проверка и дефолты параметров при создании комнаты
	Configure(maxPlayers int, opts domain.Options) (int, domain.Options, error)

	// вызывается перед добавлением игрока в комнату
	Seat(room *domain.Room, p *domain.Player)

	// waiting -> active: первичное состояние и дедлайн
	Start(room *domain.Room, now time.Time) error

	// ход игрока
	Act(room *domain.Room, userID int64, action Action, now time.Time) (Progress, error)

	// продвигает комнату по наступившим дедлайнам
	Resolve(room *domain.Room, now time.Time) (Progress, error)

	// победитель по завершенному состоянию; ничья при равенстве
	Outcome(room *domain.Room) (winner *int64, draw bool)

	Decisions(room *domain.Room) []Decision
}

type Registry struct {
	rules map[domain.GameType]Rules
}

func NewRegistry(sched *scheduler.Scheduler) *Registry {
	return &Registry{rules: map[domain.GameType]Rules{
		domain.GameCoinflip:      NewCoinflip(sched),
		domain.GameDice:          NewDice(sched),
		domain.GameDicePoker:     NewDicePoker(sched),
		domain.GameBlackjackDice: NewBlackjackDice(sched),
	}}
}

func (r *Registry) Get(gt domain.GameType) (Rules, error) {
	rules, ok := r.rules[gt]
	if !ok {
		return nil, domain.ErrInvalidGameType
	}
	return rules, nil
}
