package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/fairness"
	"battle_rooms/internal/scheduler"
)

var (
	t0    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sched = scheduler.New(scheduler.Config{
		RevealDelay:  3 * time.Second,
		AdvanceDelay: 2 * time.Second,
		TurnTimeout:  20 * time.Second,
	})
)

const testSeed = "9c1185a5c5e9fc54612808977ee8f548b2258d31f4a7a1b3c2d1e0f9a8b7c6d5"

func newRoom(t *testing.T, rules Rules, opts domain.Options, players ...int64) *domain.Room {
	t.Helper()
	maxPlayers, opts, err := rules.Configure(len(players), opts)
	require.NoError(t, err)
	r := &domain.Room{
		ID:          "room-" + string(rules.Type()),
		GameType:    rules.Type(),
		Status:      domain.StatusActive,
		OwnerUserID: players[0],
		BetAmount:   100,
		MaxPlayers:  maxPlayers,
		Options:     opts,
		ServerSeed:  testSeed,
	}
	for _, id := range players {
		p := domain.Player{UserID: id, Ready: true, JoinedAt: t0}
		rules.Seat(r, &p)
		r.Players = append(r.Players, p)
	}
	require.NoError(t, rules.Start(r, t0))
	return r
}

func pendingOf(r *domain.Room) *domain.TurnPending {
	return domain.TurnOf(r.Metadata.State).Pending
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(sched)
	for _, gt := range domain.GameTypes {
		rules, err := reg.Get(gt)
		require.NoError(t, err)
		assert.Equal(t, gt, rules.Type())
	}
	_, err := reg.Get("roulette")
	assert.ErrorIs(t, err, domain.ErrInvalidGameType)
}

func TestCoinflipSidesAndReveal(t *testing.T) {
	g := NewCoinflip(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)

	assert.Equal(t, domain.SideHeads, r.Players[0].Side)
	assert.Equal(t, domain.SideTails, r.Players[1].Side)

	st := r.Metadata.State.(*domain.CoinflipState)
	require.NotNil(t, st.PendingCoin)
	assert.Equal(t, t0.Add(3*time.Second), st.PendingCoin.RevealAt)

	progress, err := g.Resolve(r, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, progress)
	assert.Empty(t, st.PendingCoin.Result)

	progress, err = g.Resolve(r, t0.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Complete, progress)

	want := int64(1)
	if fairness.Coin(testSeed, r.ID, 0) == 1 {
		want = 2
	}
	winner, draw := g.Outcome(r)
	assert.False(t, draw)
	require.NotNil(t, winner)
	assert.Equal(t, want, *winner)

	ds := g.Decisions(r)
	require.Len(t, ds, 1)
	assert.Equal(t, fairness.Derive(testSeed, r.ID, 0, 2), ds[0].Value)
}

func TestCoinflipRejectsTurnActions(t *testing.T) {
	g := NewCoinflip(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)
	_, err := g.Act(r, 1, ActionRoll, t0)
	assert.ErrorIs(t, err, domain.ErrWrongGameType)

	_, _, err = g.Configure(3, domain.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestDiceThreePlayersTurnOrder(t *testing.T) {
	g := NewDice(sched)
	r := newRoom(t, g, domain.Options{}, 10, 20, 30)

	ts := domain.TurnOf(r.Metadata.State)
	assert.Equal(t, []int64{10, 20, 30}, ts.Order)
	assert.Equal(t, int64(10), ts.Pending.CurrentTurnUserID)
	assert.Equal(t, domain.PhaseTurn, ts.Pending.Phase)

	_, err := g.Act(r, 20, ActionRoll, t0)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)
	_, err = g.Act(r, 99, ActionRoll, t0)
	assert.ErrorIs(t, err, domain.ErrNotMember)

	now := t0
	lastAdvance := ts.Pending.AdvanceAt
	for i, id := range []int64{10, 20, 30} {
		progress, err := g.Act(r, id, ActionRoll, now)
		require.NoError(t, err, "player %d", id)
		assert.Equal(t, Changed, progress)

		p := pendingOf(r)
		assert.Equal(t, domain.PhaseReveal, p.Phase)
		assert.True(t, p.AdvanceAt.After(lastAdvance), "advanceAt must grow")
		lastAdvance = p.AdvanceAt

		// второй бросок до раскрытия
		_, err = g.Act(r, id, ActionRoll, now.Add(time.Second))
		assert.ErrorIs(t, err, domain.ErrRollPending)

		// не последний игрок: переход по дедлайну
		now = p.AdvanceAt
		progress, err = g.Resolve(r, now)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, Changed, progress)
			assert.True(t, pendingOf(r).AdvanceAt.After(lastAdvance))
			lastAdvance = pendingOf(r).AdvanceAt
		} else {
			assert.Equal(t, Complete, progress)
			assert.Nil(t, domain.TurnOf(r.Metadata.State).Pending)
		}
	}

	for _, p := range r.Players {
		require.Len(t, p.Rolls, 1)
	}
	winner, draw := g.Outcome(r)
	if draw {
		assert.Nil(t, winner)
	} else {
		require.NotNil(t, winner)
		best := r.Player(*winner).Total()
		for _, p := range r.Players {
			if p.UserID != *winner {
				assert.Less(t, p.Total(), best)
			}
		}
	}
	assert.Len(t, g.Decisions(r), 3)
}

func TestDiceLazyAdvanceAfterReveal(t *testing.T) {
	g := NewDice(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)

	_, err := g.Act(r, 1, ActionRoll, t0)
	require.NoError(t, err)
	revealAt := *pendingOf(r).RevealAt

	// до revealAt ход еще не перешел
	_, err = g.Act(r, 2, ActionRoll, revealAt.Add(-time.Millisecond))
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	progress, err := g.Act(r, 2, ActionRoll, revealAt)
	require.NoError(t, err)
	assert.Equal(t, Changed, progress)
	assert.Equal(t, int64(2), pendingOf(r).CurrentTurnUserID)
	assert.Len(t, r.Player(2).Rolls, 1)
}

func TestDiceRoundsAndTimeout(t *testing.T) {
	g := NewDice(sched)
	r := newRoom(t, g, domain.Options{Rounds: 2, Sides: 12}, 1, 2)

	now := t0
	steps := 0
	for {
		p := pendingOf(r)
		require.NotNil(t, p)
		now = p.AdvanceAt
		progress, err := g.Resolve(r, now)
		require.NoError(t, err)
		steps++
		if progress == Complete {
			break
		}
		require.Less(t, steps, 20)
	}
	// 2 игрока * 2 раунда, каждый бросок - автоход и передача хода
	assert.Equal(t, 8, steps)
	for _, p := range r.Players {
		require.Len(t, p.Rolls, 2)
		for _, roll := range p.Rolls {
			assert.GreaterOrEqual(t, roll.Value, 1)
			assert.LessOrEqual(t, roll.Value, 12)
		}
	}
	assert.Equal(t, 2, domain.TurnOf(r.Metadata.State).Round)
}

func TestDiceConfigure(t *testing.T) {
	g := NewDice(sched)
	maxPlayers, opts, err := g.Configure(0, domain.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, maxPlayers)
	assert.Equal(t, domain.Options{Sides: 6, Rounds: 1}, opts)

	_, _, err = g.Configure(2, domain.Options{Sides: 21})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
	_, _, err = g.Configure(2, domain.Options{Rounds: 6})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
	_, _, err = g.Configure(7, domain.Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestDicePokerRollsFiveConsecutiveNonces(t *testing.T) {
	g := NewDicePoker(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)

	_, err := g.Act(r, 1, ActionRoll, t0)
	require.NoError(t, err)
	rolls := r.Player(1).Rolls
	require.Len(t, rolls, PokerDice)
	for i, roll := range rolls {
		assert.Equal(t, uint64(i), roll.Nonce)
		assert.Equal(t, fairness.Die(testSeed, r.ID, uint64(i), 6), roll.Value)
	}

	now := pendingOf(r).AdvanceAt
	_, err = g.Resolve(r, now)
	require.NoError(t, err)
	_, err = g.Act(r, 2, ActionRoll, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(PokerDice), r.Player(2).Rolls[0].Nonce)

	progress, err := g.Resolve(r, pendingOf(r).AdvanceAt)
	require.NoError(t, err)
	assert.Equal(t, Complete, progress)

	winner, draw := g.Outcome(r)
	c := CompareHands(HandOf(r.Player(1)), HandOf(r.Player(2)))
	switch {
	case c == 0:
		assert.True(t, draw)
	case c > 0:
		assert.Equal(t, int64(1), *winner)
	default:
		assert.Equal(t, int64(2), *winner)
	}
}

func TestBlackjackStandAndBust(t *testing.T) {
	g := NewBlackjackDice(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)

	_, err := g.Act(r, 1, ActionRoll, t0)
	assert.ErrorIs(t, err, domain.ErrWrongGameType)

	// первый игрок тянет, пока сумма не дойдет до 21 или выше
	now := t0
	for {
		_, err := g.Act(r, 1, ActionHit, now)
		require.NoError(t, err)
		// исход hit не виден до раскрытия
		assert.False(t, r.Player(1).Done())
		now = *pendingOf(r).RevealAt
		if r.Player(1).Total() >= BlackjackTarget {
			break
		}
	}
	total := r.Player(1).Total()

	// переход хода после раскрытия последнего hit
	progress, err := g.Resolve(r, pendingOf(r).AdvanceAt)
	require.NoError(t, err)
	assert.Equal(t, Changed, progress)
	assert.Equal(t, total > BlackjackTarget, r.Player(1).Busted)
	assert.Equal(t, total == BlackjackTarget, r.Player(1).Stood)
	assert.Equal(t, int64(2), pendingOf(r).CurrentTurnUserID)
	now = pendingOf(r).AdvanceAt.Add(-time.Second)

	_, err = g.Act(r, 1, ActionHit, now)
	assert.ErrorIs(t, err, domain.ErrPlayerDone)

	progress, err = g.Act(r, 2, ActionStand, now)
	require.NoError(t, err)
	assert.Equal(t, Complete, progress)

	winner, draw := g.Outcome(r)
	if r.Player(1).Busted {
		// у второго 0 очков, но он не перебрал
		assert.False(t, draw)
		assert.Equal(t, int64(2), *winner)
	} else {
		assert.Equal(t, int64(1), *winner)
	}
}

func TestBlackjackAutoStandOnTimeout(t *testing.T) {
	g := NewBlackjackDice(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)

	progress, err := g.Resolve(r, pendingOf(r).AdvanceAt)
	require.NoError(t, err)
	assert.Equal(t, Changed, progress)
	assert.True(t, r.Player(1).Stood)
	assert.Equal(t, int64(2), pendingOf(r).CurrentTurnUserID)

	progress, err = g.Resolve(r, pendingOf(r).AdvanceAt)
	require.NoError(t, err)
	assert.Equal(t, Complete, progress)

	// оба с нулем - ничья
	winner, draw := g.Outcome(r)
	assert.True(t, draw)
	assert.Nil(t, winner)
}

func TestResolveFlagsInconsistentState(t *testing.T) {
	g := NewDice(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)
	domain.TurnOf(r.Metadata.State).Pending = nil
	_, err := g.Resolve(r, t0.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrInconsistent)

	c := NewCoinflip(sched)
	cr := newRoom(t, c, domain.Options{}, 1, 2)
	cr.Metadata.State = &domain.CoinflipState{}
	_, err = c.Resolve(cr, t0.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrInconsistent)
}

func TestUninitializedTurnOrder(t *testing.T) {
	g := NewDice(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)
	r.Metadata.State = &domain.DiceState{}
	_, err := g.Act(r, 1, ActionRoll, t0)
	assert.ErrorIs(t, err, domain.ErrTurnOrderUninitialized)
}

func TestEvaluateHand(t *testing.T) {
	cases := []struct {
		dice []int
		want HandRank
	}{
		{[]int{4, 4, 4, 4, 4}, HandFiveOfAKind},
		{[]int{2, 2, 5, 2, 2}, HandFourOfAKind},
		{[]int{3, 3, 6, 6, 6}, HandFullHouse},
		{[]int{5, 1, 3, 2, 4}, HandStraight},
		{[]int{6, 2, 3, 4, 5}, HandStraight},
		{[]int{1, 1, 1, 4, 6}, HandThreeOfAKind},
		{[]int{2, 2, 5, 5, 6}, HandTwoPair},
		{[]int{6, 6, 1, 3, 4}, HandPair},
		{[]int{1, 2, 3, 4, 6}, HandNothing},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EvaluateHand(tc.dice).Rank, "%v", tc.dice)
	}

	// равные комбинации решаются гранями
	assert.Greater(t, CompareHands(EvaluateHand([]int{6, 6, 1, 2, 3}), EvaluateHand([]int{5, 5, 1, 2, 3})), 0)
	assert.Equal(t, 0, CompareHands(EvaluateHand([]int{6, 6, 1, 2, 3}), EvaluateHand([]int{3, 2, 1, 6, 6})))
	assert.Greater(t, CompareHands(EvaluateHand([]int{2, 3, 4, 5, 6}), EvaluateHand([]int{1, 2, 3, 4, 5})), 0)
}

func TestActAfterFinalRevealReportsTurnState(t *testing.T) {
	g := NewBlackjackDice(sched)
	r := newRoom(t, g, domain.Options{}, 1, 2)

	_, err := g.Act(r, 1, ActionStand, t0)
	require.NoError(t, err)

	// второй игрок добирает до 21+, последнее раскрытие завершит матч
	now := t0
	for r.Player(2).Total() < BlackjackTarget {
		_, err := g.Act(r, 2, ActionHit, now)
		require.NoError(t, err)
		now = *pendingOf(r).RevealAt
	}
	revealAt := *pendingOf(r).RevealAt

	// после revealAt, но до advanceAt: комната еще active
	_, err = g.Act(r.Clone(), 2, ActionHit, revealAt)
	assert.ErrorIs(t, err, domain.ErrPlayerDone)
	_, err = g.Act(r.Clone(), 1, ActionHit, revealAt)
	assert.ErrorIs(t, err, domain.ErrPlayerDone)
	_, err = g.Act(r.Clone(), 9, ActionHit, revealAt)
	assert.ErrorIs(t, err, domain.ErrNotMember)

	d := NewDice(sched)
	dr := newRoom(t, d, domain.Options{}, 1, 2)
	_, err = d.Act(dr, 1, ActionRoll, t0)
	require.NoError(t, err)
	_, err = d.Act(dr, 2, ActionRoll, *pendingOf(dr).RevealAt)
	require.NoError(t, err)
	_, err = d.Act(dr.Clone(), 2, ActionRoll, *pendingOf(dr).RevealAt)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)
}
