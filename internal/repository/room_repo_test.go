package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"battle_rooms/internal/db"
	"battle_rooms/internal/domain"
	"battle_rooms/internal/repository"
)

var (
	pgPool  *pgxpool.Pool
	pgRooms *repository.RoomRepository
	pgAudit *repository.AuditRepository
)

// поднимаем postgres в контейнере только по PVP_INTEGRATION=1
func TestMain(m *testing.M) {
	if os.Getenv("PVP_INTEGRATION") != "1" {
		os.Exit(m.Run())
	}
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("pvp"),
		postgres.WithUsername("pvp"),
		postgres.WithPassword("pvp"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	if err := db.Migrate(connString); err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, connString)
	if err != nil {
		panic(err)
	}
	pgPool = pool
	pgRooms = repository.NewRoomRepository(pool)
	pgAudit = repository.NewAuditRepository(pool)

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func requirePostgres(t *testing.T) {
	t.Helper()
	if pgRooms == nil {
		t.Skip("set PVP_INTEGRATION=1 to run postgres tests")
	}
}

func TestRoomRepositoryRoundTrip(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	room := &domain.Room{
		ID:          "6f2d1c52-1111-4c2b-9a57-0a7d2f1e0001",
		GameType:    domain.GameDice,
		Status:      domain.StatusWaiting,
		OwnerUserID: 7,
		BetAmount:   25,
		MaxPlayers:  3,
		Invited:     []int64{8},
		Options:     domain.Options{Sides: 6, Rounds: 2},
		Players:     []domain.Player{{UserID: 7, JoinedAt: now}},
		Metadata:    domain.Metadata{State: &domain.DiceState{}},
		Version:     1,
		CreatedAt:   now,
	}
	require.NoError(t, pgRooms.Create(ctx, room))

	got, err := pgRooms.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Options, got.Options)
	assert.Equal(t, []int64{8}, got.Invited)
	require.Len(t, got.Players, 1)
	assert.Equal(t, int64(7), got.Players[0].UserID)
	assert.IsType(t, &domain.DiceState{}, got.Metadata.State)

	// активируем: метаданные и дедлайн переживают запись
	deadline := now.Add(-time.Second)
	got.Status = domain.StatusActive
	got.StartedAt = &now
	got.ServerSeed = "seed"
	got.Metadata = domain.Metadata{
		ServerSeedHash: "hash",
		State: &domain.DiceState{TurnState: domain.TurnState{
			Order: []int64{7, 8},
			Round: 1,
			Pending: &domain.TurnPending{
				CurrentTurnUserID: 7,
				Phase:             domain.PhaseTurn,
				AdvanceAt:         deadline,
			},
		}},
	}
	got.DeadlineAt = &deadline
	got.Version = 2
	require.NoError(t, pgRooms.CompareAndSwap(ctx, got, 1))
	assert.ErrorIs(t, pgRooms.CompareAndSwap(ctx, got, 1), domain.ErrVersionConflict)

	due, err := pgRooms.DueRooms(ctx, now, 10)
	require.NoError(t, err)
	require.NotEmpty(t, due)
	assert.Equal(t, room.ID, due[0].ID)
	ts := domain.TurnOf(due[0].Metadata.State)
	require.NotNil(t, ts)
	assert.Equal(t, []int64{7, 8}, ts.Order)
	assert.Equal(t, "seed", due[0].ServerSeed)

	stats, err := pgRooms.Stats(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Stale[domain.GameDice], 1)
	assert.GreaterOrEqual(t, stats.Counts[domain.StatusActive], 1)

	// tombstone
	due[0].DeletedAt = &now
	due[0].Version = 3
	require.NoError(t, pgRooms.CompareAndSwap(ctx, due[0], 2))
	_, err = pgRooms.Get(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestAuditRepositoryByRoom(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()

	roomID := "6f2d1c52-1111-4c2b-9a57-0a7d2f1e0002"
	for _, action := range []string{domain.AuditActionRoomCreate, domain.AuditActionRoomStart} {
		require.NoError(t, pgAudit.Create(ctx, &domain.AuditLog{
			UserID:   1,
			RoomID:   roomID,
			Action:   action,
			Category: domain.AuditCategoryPvP,
			Details:  map[string]interface{}{"bet": 10},
		}))
	}

	logs, err := pgAudit.GetByRoomID(ctx, roomID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.AuditActionRoomCreate, logs[0].Action)
	assert.Equal(t, domain.AuditActionRoomStart, logs[1].Action)
	assert.EqualValues(t, 10, logs[0].Details["bet"])
}

func TestDueRoomsSkipsUndecodableRow(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	deadline := now.Add(-time.Minute)

	healthy := &domain.Room{
		ID:          "6f2d1c52-1111-4c2b-9a57-0a7d2f1e0003",
		GameType:    domain.GameCoinflip,
		Status:      domain.StatusActive,
		OwnerUserID: 1,
		BetAmount:   10,
		MaxPlayers:  2,
		Players:     []domain.Player{{UserID: 1}, {UserID: 2}},
		ServerSeed:  "seed",
		Metadata: domain.Metadata{
			ServerSeedHash: "hash",
			State:          &domain.CoinflipState{PendingCoin: &domain.PendingCoin{RevealAt: deadline}},
		},
		DeadlineAt: &deadline,
		Version:    2,
		CreatedAt:  now,
		StartedAt:  &now,
	}
	require.NoError(t, pgRooms.Create(ctx, healthy))

	// players не массив: строка читается, но не разбирается
	brokenID := "6f2d1c52-1111-4c2b-9a57-0a7d2f1e0004"
	_, err := pgPool.Exec(ctx, `
		INSERT INTO pvp_rooms (id, game_type, status, owner_user_id, bet_amount, max_players,
		                       players, server_seed, deadline_at, version)
		VALUES ($1, 'dice', 'active', 1, 10, 2, '{"not":"an array"}', 'seed', $2, 5)
	`, brokenID, deadline.Add(-time.Minute))
	require.NoError(t, err)

	due, err := pgRooms.DueRooms(ctx, now, 100)
	require.NoError(t, err)
	ids := make([]string, 0, len(due))
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, healthy.ID)
	assert.NotContains(t, ids, brokenID)

	// битая строка помечена и больше не попадает в выборку
	var needsReview bool
	var version int64
	require.NoError(t, pgPool.QueryRow(ctx,
		`SELECT needs_review, version FROM pvp_rooms WHERE id = $1`, brokenID).Scan(&needsReview, &version))
	assert.True(t, needsReview)
	assert.Equal(t, int64(6), version)

	review, err := pgRooms.ListReview(ctx, 100)
	require.NoError(t, err)
	var found *domain.Room
	for _, r := range review {
		if r.ID == brokenID {
			found = r
		}
	}
	require.NotNil(t, found)
	assert.Contains(t, found.ReviewReason, "players")

	_, err = pgRooms.Get(ctx, brokenID)
	assert.Error(t, err)
}
