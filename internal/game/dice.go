package game

import (
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/scheduler"
)

// границы настроек кубика
const (
	DiceMinSides  = 2
	DiceMaxSides  = 20
	DiceMinRounds = 1
	DiceMaxRounds = 5
)

// Dice: игроки по очереди бросают по одному кубику за раунд,
// побеждает наибольшая сумма всех бросков.
type Dice struct {
	turnEngine
}

func NewDice(sched *scheduler.Scheduler) *Dice {
	g := &Dice{}
	g.turnEngine = turnEngine{sched: sched, gt: domain.GameDice, hooks: g}
	return g
}

func (g *Dice) Configure(maxPlayers int, opts domain.Options) (int, domain.Options, error) {
	maxPlayers, err := configureTurn(maxPlayers)
	if err != nil {
		return 0, domain.Options{}, err
	}
	if opts.Sides == 0 {
		opts.Sides = defaultSides
	}
	if opts.Rounds == 0 {
		opts.Rounds = DiceMinRounds
	}
	if opts.Sides < DiceMinSides || opts.Sides > DiceMaxSides ||
		opts.Rounds < DiceMinRounds || opts.Rounds > DiceMaxRounds {
		return 0, domain.Options{}, domain.ErrInvalidOptions
	}
	return maxPlayers, opts, nil
}

func (g *Dice) play(room *domain.Room, ts *domain.TurnState, p *domain.Player, action Action, now time.Time) (Progress, error) {
	if action != ActionRoll {
		return Unchanged, domain.ErrWrongGameType
	}
	revealAt := g.enterReveal(ts, now)
	p.Rolls = append(p.Rolls, rollDice(room, ts, 1, sidesOf(room), revealAt)...)
	return Changed, nil
}

func (g *Dice) autoAction() Action { return ActionRoll }

// после последнего игрока начинается следующий раунд
func (g *Dice) next(room *domain.Room, ts *domain.TurnState) (int64, bool) {
	if id, ok := nextInOrder(ts, ts.Pending.CurrentTurnUserID, nil); ok {
		return id, true
	}
	if ts.Round < roundsOf(room) {
		ts.Round++
		return ts.Order[0], true
	}
	return 0, false
}

func (g *Dice) Outcome(room *domain.Room) (*int64, bool) {
	return uniqueBest(room.Players, nil, func(a, b *domain.Player) int {
		return a.Total() - b.Total()
	})
}

func (g *Dice) Decisions(room *domain.Room) []Decision {
	return rollDecisions(room, sidesOf(room))
}

func sidesOf(room *domain.Room) int {
	if room.Options.Sides > 0 {
		return room.Options.Sides
	}
	return defaultSides
}

func roundsOf(room *domain.Room) int {
	if room.Options.Rounds > 0 {
		return room.Options.Rounds
	}
	return DiceMinRounds
}
