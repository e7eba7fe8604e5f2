package game

import (
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/fairness"
	"battle_rooms/internal/scheduler"
)

// Coinflip: два игрока, у владельца орел, у второго решка.
// Монетка бросается при старте, результат раскрывается в revealAt.
type Coinflip struct {
	sched *scheduler.Scheduler
}

// монетка всегда использует нулевой nonce
const coinNonce = 0

func NewCoinflip(sched *scheduler.Scheduler) *Coinflip {
	return &Coinflip{sched: sched}
}

func (g *Coinflip) Type() domain.GameType { return domain.GameCoinflip }

func (g *Coinflip) Configure(maxPlayers int, opts domain.Options) (int, domain.Options, error) {
	if maxPlayers == 0 {
		maxPlayers = 2
	}
	if maxPlayers != 2 {
		return 0, domain.Options{}, domain.ErrInvalidOptions
	}
	if opts.Sides != 0 || opts.Rounds != 0 {
		return 0, domain.Options{}, domain.ErrInvalidOptions
	}
	return maxPlayers, domain.Options{}, nil
}

func (g *Coinflip) Seat(room *domain.Room, p *domain.Player) {
	p.Side = domain.SideHeads
	for _, other := range room.Players {
		if other.Side == domain.SideHeads {
			p.Side = domain.SideTails
			break
		}
	}
}

func (g *Coinflip) Start(room *domain.Room, now time.Time) error {
	room.Metadata.State = &domain.CoinflipState{
		PendingCoin: &domain.PendingCoin{
			RevealAt: g.sched.CoinRevealAt(now),
			Nonce:    coinNonce,
		},
	}
	return nil
}

func (g *Coinflip) Act(room *domain.Room, userID int64, action Action, now time.Time) (Progress, error) {
	return Unchanged, domain.ErrWrongGameType
}

func (g *Coinflip) Resolve(room *domain.Room, now time.Time) (Progress, error) {
	st, ok := room.Metadata.State.(*domain.CoinflipState)
	if !ok || st.PendingCoin == nil {
		return Unchanged, domain.ErrInconsistent
	}
	pc := st.PendingCoin
	if now.Before(pc.RevealAt) {
		return Unchanged, nil
	}
	if room.ServerSeed == "" {
		return Unchanged, domain.ErrInconsistent
	}

	side := domain.SideHeads
	if fairness.Coin(room.ServerSeed, room.ID, pc.Nonce) == 1 {
		side = domain.SideTails
	}
	var winner *int64
	for _, p := range room.Players {
		if p.Side == side {
			id := p.UserID
			winner = &id
		}
	}
	if winner == nil {
		return Unchanged, domain.ErrInconsistent
	}
	pc.Result = side
	pc.WinnerUserID = winner
	return Complete, nil
}

func (g *Coinflip) Outcome(room *domain.Room) (*int64, bool) {
	st, ok := room.Metadata.State.(*domain.CoinflipState)
	if !ok || st.PendingCoin == nil || st.PendingCoin.WinnerUserID == nil {
		return nil, true
	}
	id := *st.PendingCoin.WinnerUserID
	return &id, false
}

func (g *Coinflip) Decisions(room *domain.Room) []Decision {
	st, ok := room.Metadata.State.(*domain.CoinflipState)
	if !ok || st.PendingCoin == nil || st.PendingCoin.Result == "" {
		return nil
	}
	d := Decision{Nonce: st.PendingCoin.Nonce, Range: 2}
	if st.PendingCoin.Result == domain.SideTails {
		d.Value = 1
	}
	if st.PendingCoin.WinnerUserID != nil {
		d.UserID = *st.PendingCoin.WinnerUserID
	}
	return []Decision{d}
}
