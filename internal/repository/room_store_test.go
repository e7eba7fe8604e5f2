package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle_rooms/internal/domain"
)

var t0 = time.Date(2026, 4, 5, 10, 0, 0, 0, time.UTC)

func waitingRoom(id string, createdAt time.Time) *domain.Room {
	return &domain.Room{
		ID:          id,
		GameType:    domain.GameDice,
		Status:      domain.StatusWaiting,
		OwnerUserID: 1,
		BetAmount:   50,
		MaxPlayers:  2,
		Options:     domain.Options{Sides: 6, Rounds: 1},
		Players:     []domain.Player{{UserID: 1, JoinedAt: createdAt}},
		Metadata:    domain.Metadata{State: &domain.DiceState{}},
		Version:     1,
		CreatedAt:   createdAt,
	}
}

func activeRoom(id string, gt domain.GameType, deadline *time.Time) *domain.Room {
	r := waitingRoom(id, t0)
	r.GameType = gt
	r.Status = domain.StatusActive
	r.DeadlineAt = deadline
	return r
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoomStore()
	require.NoError(t, s.Create(ctx, waitingRoom("a", t0)))

	r, err := s.Get(ctx, "a")
	require.NoError(t, err)

	// изменения копии не видны хранилищу
	r.Players[0].Ready = true
	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, stored.Players[0].Ready)

	r.Version = 2
	require.NoError(t, s.CompareAndSwap(ctx, r, 1))

	// вторая запись с той же ожидаемой версией проигрывает
	stale := r.Clone()
	stale.Version = 2
	assert.ErrorIs(t, s.CompareAndSwap(ctx, stale, 1), domain.ErrVersionConflict)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.True(t, got.Players[0].Ready)
}

func TestMemoryStoreTombstoneHidesRoom(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoomStore()
	require.NoError(t, s.Create(ctx, waitingRoom("a", t0)))

	r, err := s.Get(ctx, "a")
	require.NoError(t, err)
	now := t0
	r.DeletedAt = &now
	r.Version = 2
	require.NoError(t, s.CompareAndSwap(ctx, r, 1))

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	waiting, err := s.ListWaiting(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, waiting)

	r.Version = 3
	assert.ErrorIs(t, s.CompareAndSwap(ctx, r, 2), domain.ErrRoomNotFound)
}

func TestMemoryStoreListWaiting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoomStore()
	require.NoError(t, s.Create(ctx, waitingRoom("old", t0)))
	require.NoError(t, s.Create(ctx, waitingRoom("new", t0.Add(time.Minute))))
	private := waitingRoom("private", t0.Add(2*time.Minute))
	private.Private = true
	require.NoError(t, s.Create(ctx, private))

	rooms, err := s.ListWaiting(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "new", rooms[0].ID)
	assert.Equal(t, "old", rooms[1].ID)

	rooms, err = s.ListWaiting(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestMemoryStoreDueRoomsAndStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRoomStore()

	past := t0.Add(-time.Second)
	older := t0.Add(-time.Minute)
	future := t0.Add(time.Minute)
	require.NoError(t, s.Create(ctx, activeRoom("due", domain.GameDice, &past)))
	require.NoError(t, s.Create(ctx, activeRoom("older", domain.GameCoinflip, &older)))
	require.NoError(t, s.Create(ctx, activeRoom("later", domain.GameDice, &future)))
	require.NoError(t, s.Create(ctx, activeRoom("stuck", domain.GameBlackjackDice, nil)))
	review := activeRoom("review", domain.GameDicePoker, &past)
	review.NeedsReview = true
	require.NoError(t, s.Create(ctx, review))
	require.NoError(t, s.Create(ctx, waitingRoom("lobby", t0)))

	due, err := s.DueRooms(ctx, t0, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(due))
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"stuck", "older", "due"}, ids)

	stats, err := s.Stats(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts[domain.StatusWaiting])
	assert.Equal(t, 5, stats.Counts[domain.StatusActive])
	assert.Equal(t, 0, stats.Counts[domain.StatusFinished])
	assert.Equal(t, 1, stats.Stale[domain.GameDice])
	assert.Equal(t, 1, stats.Stale[domain.GameCoinflip])
	assert.Equal(t, 1, stats.Stale[domain.GameBlackjackDice])
	assert.Equal(t, 0, stats.Stale[domain.GameDicePoker])
	assert.Equal(t, 1, stats.Review)

	reviewRooms, err := s.ListReview(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reviewRooms, 1)
	assert.Equal(t, "review", reviewRooms[0].ID)
}
