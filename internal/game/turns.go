package game

import (
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/fairness"
	"battle_rooms/internal/scheduler"
)

// общие границы пошаговых игр
const (
	minTurnPlayers = 2
	maxTurnPlayers = 6
	defaultSides   = 6
)

// turnPlay is what a concrete turn-based game plugs into turnEngine.
type turnPlay interface {
	// ход текущего игрока (бросок или hit). Возвращает Complete, если ход
	// завершает матч без фазы раскрытия.
	play(room *domain.Room, ts *domain.TurnState, p *domain.Player, action Action, now time.Time) (Progress, error)
	// что сервер делает за игрока по таймауту
	autoAction() Action
	// кто ходит после раскрытия; ok=false - матч окончен
	next(room *domain.Room, ts *domain.TurnState) (userID int64, ok bool)
}

type turnEngine struct {
	sched *scheduler.Scheduler
	gt    domain.GameType
	hooks turnPlay
}

func (e *turnEngine) Type() domain.GameType { return e.gt }

func (e *turnEngine) Seat(room *domain.Room, p *domain.Player) {}

// очередь ходов - порядок входа в комнату, фиксируется на старте
func (e *turnEngine) Start(room *domain.Room, now time.Time) error {
	state, err := domain.NewGameState(e.gt)
	if err != nil {
		return err
	}
	ts := domain.TurnOf(state)
	ts.Order = make([]int64, 0, len(room.Players))
	for _, p := range room.Players {
		ts.Order = append(ts.Order, p.UserID)
	}
	if len(ts.Order) == 0 {
		return domain.ErrTurnOrderUninitialized
	}
	ts.Round = 1
	e.enterTurn(ts, ts.Order[0], now)
	room.Metadata.State = state
	return nil
}

func (e *turnEngine) Act(room *domain.Room, userID int64, action Action, now time.Time) (Progress, error) {
	ts, err := e.state(room)
	if err != nil {
		return Unchanged, err
	}
	if err := ensureConsistent(room, ts); err != nil {
		return Unchanged, err
	}

	// раскрытие уже наступило: сначала передаем ход, как это сделал бы sweep
	pending := ts.Pending
	if pending.Phase == domain.PhaseReveal && pending.RevealAt != nil && !now.Before(*pending.RevealAt) {
		progress, err := e.advance(room, ts, now)
		if err != nil {
			return Unchanged, err
		}
		// матч доигран, но еще не записан как finished: это сделает Resolve
		if progress == Complete {
			switch p := room.Player(userID); {
			case p == nil:
				return Unchanged, domain.ErrNotMember
			case p.Done():
				return Unchanged, domain.ErrPlayerDone
			default:
				return Unchanged, domain.ErrNotYourTurn
			}
		}
	}

	p := room.Player(userID)
	if p == nil {
		return Unchanged, domain.ErrNotMember
	}
	if p.Done() {
		return Unchanged, domain.ErrPlayerDone
	}
	if ts.Pending.CurrentTurnUserID != userID {
		return Unchanged, domain.ErrNotYourTurn
	}
	if ts.Pending.Phase != domain.PhaseTurn {
		return Unchanged, domain.ErrRollPending
	}
	return e.hooks.play(room, ts, p, action, now)
}

func (e *turnEngine) Resolve(room *domain.Room, now time.Time) (Progress, error) {
	ts, err := e.state(room)
	if err != nil {
		return Unchanged, domain.ErrInconsistent
	}
	if err := ensureConsistent(room, ts); err != nil {
		return Unchanged, err
	}
	if now.Before(ts.Pending.AdvanceAt) {
		return Unchanged, nil
	}

	switch ts.Pending.Phase {
	case domain.PhaseReveal:
		return e.advance(room, ts, now)
	case domain.PhaseTurn:
		// игрок проспал ход
		p := room.Player(ts.Pending.CurrentTurnUserID)
		return e.hooks.play(room, ts, p, e.hooks.autoAction(), now)
	}
	return Unchanged, domain.ErrInconsistent
}

func (e *turnEngine) state(room *domain.Room) (*domain.TurnState, error) {
	if room.Metadata.State == nil || room.Metadata.State.GameType() != e.gt {
		return nil, domain.ErrTurnOrderUninitialized
	}
	ts := domain.TurnOf(room.Metadata.State)
	if ts == nil || len(ts.Order) == 0 {
		return nil, domain.ErrTurnOrderUninitialized
	}
	return ts, nil
}

// метаданные должны однозначно определять следующий шаг
func ensureConsistent(room *domain.Room, ts *domain.TurnState) error {
	if ts.Pending == nil || room.ServerSeed == "" {
		return domain.ErrInconsistent
	}
	if room.Player(ts.Pending.CurrentTurnUserID) == nil {
		return domain.ErrInconsistent
	}
	for _, id := range ts.Order {
		if room.Player(id) == nil {
			return domain.ErrInconsistent
		}
	}
	if ts.Pending.Phase == domain.PhaseReveal && ts.Pending.RevealAt == nil {
		return domain.ErrInconsistent
	}
	return nil
}

func (e *turnEngine) advance(room *domain.Room, ts *domain.TurnState, now time.Time) (Progress, error) {
	nextID, ok := e.hooks.next(room, ts)
	if !ok {
		ts.Pending = nil
		return Complete, nil
	}
	e.enterTurn(ts, nextID, now)
	return Changed, nil
}

func (e *turnEngine) enterTurn(ts *domain.TurnState, userID int64, now time.Time) {
	var prev *time.Time
	if ts.Pending != nil {
		prev = &ts.Pending.AdvanceAt
	}
	ts.Pending = &domain.TurnPending{
		CurrentTurnUserID: userID,
		Phase:             domain.PhaseTurn,
		AdvanceAt:         e.sched.TurnDeadline(now, prev),
	}
}

// enterReveal переводит текущий ход в фазу раскрытия и возвращает revealAt
func (e *turnEngine) enterReveal(ts *domain.TurnState, now time.Time) time.Time {
	prev := ts.Pending.AdvanceAt
	revealAt, advanceAt := e.sched.RevealDeadlines(now, &prev)
	ts.Pending = &domain.TurnPending{
		CurrentTurnUserID: ts.Pending.CurrentTurnUserID,
		Phase:             domain.PhaseReveal,
		RevealAt:          &revealAt,
		AdvanceAt:         advanceAt,
	}
	return revealAt
}

// rollDice бросает count кубиков подряд идущими nonce
func rollDice(room *domain.Room, ts *domain.TurnState, count, sides int, revealAt time.Time) []domain.Roll {
	rolls := make([]domain.Roll, 0, count)
	for i := 0; i < count; i++ {
		nonce := ts.TakeNonce()
		rolls = append(rolls, domain.Roll{
			Value:    fairness.Die(room.ServerSeed, room.ID, nonce, sides),
			Nonce:    nonce,
			RevealAt: revealAt,
		})
	}
	return rolls
}

// следующий по очереди после current, кому skip не запрещает ходить
func nextInOrder(ts *domain.TurnState, current int64, skip func(int64) bool) (int64, bool) {
	idx := -1
	for i, id := range ts.Order {
		if id == current {
			idx = i
			break
		}
	}
	for i := idx + 1; i < len(ts.Order); i++ {
		if skip == nil || !skip(ts.Order[i]) {
			return ts.Order[i], true
		}
	}
	return 0, false
}

func configureTurn(maxPlayers int) (int, error) {
	if maxPlayers == 0 {
		maxPlayers = minTurnPlayers
	}
	if maxPlayers < minTurnPlayers || maxPlayers > maxTurnPlayers {
		return 0, domain.ErrInvalidOptions
	}
	return maxPlayers, nil
}

func rollDecisions(room *domain.Room, sides int) []Decision {
	var out []Decision
	for _, p := range room.Players {
		for _, r := range p.Rolls {
			out = append(out, Decision{
				UserID: p.UserID,
				Nonce:  r.Nonce,
				Value:  r.Value,
				Range:  sides,
				Offset: 1,
			})
		}
	}
	return out
}

// uniqueBest returns the single best player by cmp, or draw when the best
// score is shared or nobody qualifies.
func uniqueBest(players []domain.Player, eligible func(*domain.Player) bool, cmp func(a, b *domain.Player) int) (*int64, bool) {
	var best *domain.Player
	tied := false
	for i := range players {
		p := &players[i]
		if eligible != nil && !eligible(p) {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		switch c := cmp(p, best); {
		case c > 0:
			best = p
			tied = false
		case c == 0:
			tied = true
		}
	}
	if best == nil || tied {
		return nil, true
	}
	id := best.UserID
	return &id, false
}
