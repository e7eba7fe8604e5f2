package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle_rooms/internal/domain"
)

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func TestNewFillsDefaults(t *testing.T) {
	s := New(Config{RevealDelay: time.Second})
	assert.Equal(t, time.Second, s.Config().RevealDelay)
	assert.Equal(t, DefaultAdvanceDelay, s.Config().AdvanceDelay)
	assert.Equal(t, DefaultTurnTimeout, s.Config().TurnTimeout)
}

func TestRevealDeadlines(t *testing.T) {
	s := New(DefaultConfig())
	revealAt, advanceAt := s.RevealDeadlines(t0, nil)
	assert.Equal(t, t0.Add(3*time.Second), revealAt)
	assert.Equal(t, t0.Add(5*time.Second), advanceAt)
}

func TestAdvanceAtStrictlyIncreases(t *testing.T) {
	s := New(Config{RevealDelay: time.Second, AdvanceDelay: time.Second, TurnTimeout: time.Second})
	prev := t0.Add(10 * time.Second)

	got := s.TurnDeadline(t0, &prev)
	assert.True(t, got.After(prev))
	assert.Equal(t, prev.Add(time.Millisecond), got)

	_, adv := s.RevealDeadlines(t0, &prev)
	assert.True(t, adv.After(prev))

	// без конфликта значение не трогаем
	early := t0.Add(-time.Hour)
	assert.Equal(t, t0.Add(time.Second), s.TurnDeadline(t0, &early))
}

func TestNextDeadline(t *testing.T) {
	coin := &domain.Room{
		Status:   domain.StatusActive,
		Metadata: domain.Metadata{State: &domain.CoinflipState{PendingCoin: &domain.PendingCoin{RevealAt: t0}}},
	}
	require.NotNil(t, NextDeadline(coin))
	assert.Equal(t, t0, *NextDeadline(coin))

	dice := &domain.Room{
		Status: domain.StatusActive,
		Metadata: domain.Metadata{State: &domain.DiceState{TurnState: domain.TurnState{
			Pending: &domain.TurnPending{AdvanceAt: t0.Add(time.Second)},
		}}},
	}
	assert.Equal(t, t0.Add(time.Second), *NextDeadline(dice))

	dice.Status = domain.StatusFinished
	assert.Nil(t, NextDeadline(dice))
}

func TestDue(t *testing.T) {
	deadline := t0
	r := &domain.Room{Status: domain.StatusActive, DeadlineAt: &deadline}

	assert.False(t, Due(r, t0.Add(-time.Millisecond)))
	assert.True(t, Due(r, t0))
	assert.True(t, Due(r, t0.Add(time.Second)))

	r.NeedsReview = true
	assert.False(t, Due(r, t0.Add(time.Second)))
	r.NeedsReview = false

	r.DeletedAt = &deadline
	assert.False(t, Due(r, t0.Add(time.Second)))
	r.DeletedAt = nil

	r.Status = domain.StatusWaiting
	assert.False(t, Due(r, t0.Add(time.Second)))

	// активная комната без дедлайна застряла
	r.Status = domain.StatusActive
	r.DeadlineAt = nil
	assert.True(t, Due(r, t0))
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(t0)
	assert.Equal(t, t0, c.Now())
	c.Advance(time.Second)
	assert.Equal(t, t0.Add(time.Second), c.Now())
	c.Set(t0)
	assert.Equal(t, t0, c.Now())
}
