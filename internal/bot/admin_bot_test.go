package bot

import (
	"testing"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/game"
	"battle_rooms/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestFormatHealth(t *testing.T) {
	last := int64(1_700_000_000_000)
	report := &service.HealthReport{
		ServerNowISO: "2026-05-06T18:00:00.000Z",
		UptimeSec:    90,
		Cron:         service.CronReport{SweepIntervalMs: 1000, LastSweepAt: &last, LastSweepISO: "2026-05-06T17:59:59.500Z"},
		Counts:       map[string]int{"waiting": 2, "active": 1, "finished": 7},
		Stale:        map[string]int{"coinflip": 1, "dice": 0, "dicepoker": 0, "blackjackdice": 0},
		Review:       1,
	}
	out := formatHealth(report)
	assert.Contains(t, out, "- waiting: 2")
	assert.Contains(t, out, "- coinflip: 1")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "2026-05-06T17:59:59.500Z")
	assert.Contains(t, out, "/review")
}

func TestFormatReview(t *testing.T) {
	assert.Contains(t, formatReview(nil), "нет")

	rooms := []*domain.Room{{ID: "r1", GameType: domain.GameDice, Version: 4, ReviewReason: "inconsistent <dice> metadata"}}
	out := formatReview(rooms)
	assert.Contains(t, out, "<code>r1</code>")
	assert.Contains(t, out, "&lt;dice&gt;")
}

func TestFormatRoomAndAlert(t *testing.T) {
	winner := int64(2)
	room := &domain.Room{
		ID:           "r1",
		GameType:     domain.GameCoinflip,
		Status:       domain.StatusFinished,
		OwnerUserID:  1,
		BetAmount:    50,
		Version:      6,
		Players:      []domain.Player{{UserID: 1}, {UserID: 2}},
		WinnerUserID: &winner,
	}
	out := formatRoom(room, []*domain.AuditLog{{Action: domain.AuditActionRoomFinish, UserID: 1}})
	assert.Contains(t, out, "Игроки: 1, 2 (владелец 1)")
	assert.Contains(t, out, "Победитель: 2")
	assert.Contains(t, out, "room_finish")

	room.ReviewReason = "stuck"
	alert := formatReviewAlert(room)
	assert.Contains(t, alert, "Причина: stuck")
	assert.Contains(t, alert, "/room r1")
}

func TestFormatVerify(t *testing.T) {
	report := &service.VerifyReport{
		RoomID: "r1",
		Valid:  false,
		Decisions: []service.VerifiedDecision{
			{Decision: game.Decision{Nonce: 0, Value: 3}, Recomputed: 3, Match: true},
			{Decision: game.Decision{Nonce: 1, Value: 5}, Recomputed: 2, Match: false},
		},
	}
	out := formatVerify(report)
	assert.Contains(t, out, "НЕ СХОДИТСЯ")
	assert.Contains(t, out, "✗ nonce 1: 5 (пересчет 2)")
}
