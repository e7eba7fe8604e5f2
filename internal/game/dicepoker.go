package game

import (
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/scheduler"
)

// кубиков в руке
const PokerDice = 5

// DicePoker: каждый игрок один раз бросает пять шестигранных кубиков,
// побеждает старшая комбинация.
type DicePoker struct {
	turnEngine
}

func NewDicePoker(sched *scheduler.Scheduler) *DicePoker {
	g := &DicePoker{}
	g.turnEngine = turnEngine{sched: sched, gt: domain.GameDicePoker, hooks: g}
	return g
}

func (g *DicePoker) Configure(maxPlayers int, opts domain.Options) (int, domain.Options, error) {
	maxPlayers, err := configureTurn(maxPlayers)
	if err != nil {
		return 0, domain.Options{}, err
	}
	if opts.Sides != 0 && opts.Sides != defaultSides {
		return 0, domain.Options{}, domain.ErrInvalidOptions
	}
	return maxPlayers, domain.Options{Sides: defaultSides}, nil
}

func (g *DicePoker) play(room *domain.Room, ts *domain.TurnState, p *domain.Player, action Action, now time.Time) (Progress, error) {
	if action != ActionRoll {
		return Unchanged, domain.ErrWrongGameType
	}
	revealAt := g.enterReveal(ts, now)
	p.Rolls = append(p.Rolls, rollDice(room, ts, PokerDice, defaultSides, revealAt)...)
	return Changed, nil
}

func (g *DicePoker) autoAction() Action { return ActionRoll }

func (g *DicePoker) next(room *domain.Room, ts *domain.TurnState) (int64, bool) {
	return nextInOrder(ts, ts.Pending.CurrentTurnUserID, nil)
}

// HandOf - комбинация игрока по его последним пяти кубикам
func HandOf(p *domain.Player) Hand {
	dice := make([]int, 0, PokerDice)
	rolls := p.Rolls
	if len(rolls) > PokerDice {
		rolls = rolls[len(rolls)-PokerDice:]
	}
	for _, r := range rolls {
		dice = append(dice, r.Value)
	}
	return EvaluateHand(dice)
}

func (g *DicePoker) Outcome(room *domain.Room) (*int64, bool) {
	hands := make(map[int64]Hand, len(room.Players))
	for i := range room.Players {
		hands[room.Players[i].UserID] = HandOf(&room.Players[i])
	}
	return uniqueBest(room.Players,
		func(p *domain.Player) bool { return len(p.Rolls) == PokerDice },
		func(a, b *domain.Player) int { return CompareHands(hands[a.UserID], hands[b.UserID]) },
	)
}

func (g *DicePoker) Decisions(room *domain.Room) []Decision {
	return rollDecisions(room, defaultSides)
}
