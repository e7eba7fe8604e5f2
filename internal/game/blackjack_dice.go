package game

import (
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/scheduler"
)

// перебор начинается выше этой суммы
const BlackjackTarget = 21

// BlackjackDice: игрок тянет кубики (hit), пока не остановится (stand) или не
// переберет. Побеждает наибольшая сумма не выше 21.
type BlackjackDice struct {
	turnEngine
}

func NewBlackjackDice(sched *scheduler.Scheduler) *BlackjackDice {
	g := &BlackjackDice{}
	g.turnEngine = turnEngine{sched: sched, gt: domain.GameBlackjackDice, hooks: g}
	return g
}

func (g *BlackjackDice) Configure(maxPlayers int, opts domain.Options) (int, domain.Options, error) {
	maxPlayers, err := configureTurn(maxPlayers)
	if err != nil {
		return 0, domain.Options{}, err
	}
	if opts.Sides != 0 && opts.Sides != defaultSides {
		return 0, domain.Options{}, domain.ErrInvalidOptions
	}
	return maxPlayers, domain.Options{Sides: defaultSides}, nil
}

func (g *BlackjackDice) play(room *domain.Room, ts *domain.TurnState, p *domain.Player, action Action, now time.Time) (Progress, error) {
	switch action {
	case ActionHit:
		// перебор и 21 фиксируются только после раскрытия, см. next
		revealAt := g.enterReveal(ts, now)
		p.Rolls = append(p.Rolls, rollDice(room, ts, 1, defaultSides, revealAt)...)
		return Changed, nil
	case ActionStand:
		// раскрывать нечего, ход переходит сразу
		p.Stood = true
		return g.advance(room, ts, now)
	}
	return Unchanged, domain.ErrWrongGameType
}

func (g *BlackjackDice) autoAction() Action { return ActionStand }

// пока игрок не закончил, он продолжает ходить
func (g *BlackjackDice) next(room *domain.Room, ts *domain.TurnState) (int64, bool) {
	current := ts.Pending.CurrentTurnUserID
	if p := room.Player(current); p != nil {
		settleHand(p)
		if !p.Done() {
			return current, true
		}
	}
	return nextInOrder(ts, current, func(id int64) bool {
		p := room.Player(id)
		return p == nil || p.Done()
	})
}

// settleHand выставляет перебор или автоматический stand на 21 по раскрытым броскам
func settleHand(p *domain.Player) {
	switch total := p.Total(); {
	case total > BlackjackTarget:
		p.Busted = true
	case total == BlackjackTarget:
		p.Stood = true
	}
}

func (g *BlackjackDice) Outcome(room *domain.Room) (*int64, bool) {
	return uniqueBest(room.Players,
		func(p *domain.Player) bool { return !p.Busted && p.Total() <= BlackjackTarget },
		func(a, b *domain.Player) int { return a.Total() - b.Total() },
	)
}

func (g *BlackjackDice) Decisions(room *domain.Room) []Decision {
	return rollDecisions(room, defaultSides)
}
