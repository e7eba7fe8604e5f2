package repository

import (
	"context"
	"testing"

	"battle_rooms/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAuditStoreOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAuditStore()

	actions := []string{domain.AuditActionRoomCreate, domain.AuditActionRoomJoin, domain.AuditActionRoomStart}
	for _, a := range actions {
		require.NoError(t, s.Create(ctx, &domain.AuditLog{UserID: 1, RoomID: "r1", Action: a, Category: domain.AuditCategoryPvP}))
	}
	require.NoError(t, s.Create(ctx, &domain.AuditLog{RoomID: "r2", Action: domain.AuditActionRoomFlagged, Category: domain.AuditCategoryReview}))

	history, err := s.GetByRoomID(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.AuditActionRoomCreate, history[0].Action)
	assert.Equal(t, int64(1), history[0].ID)
	assert.False(t, history[0].CreatedAt.IsZero())

	limited, err := s.GetByRoomID(ctx, "r1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	pvp, err := s.GetByCategory(ctx, domain.AuditCategoryPvP, 10)
	require.NoError(t, err)
	require.Len(t, pvp, 3)
	assert.Equal(t, domain.AuditActionRoomStart, pvp[0].Action)

	review, err := s.GetByCategory(ctx, domain.AuditCategoryReview, 10)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "r2", review[0].RoomID)
}
