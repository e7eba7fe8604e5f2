package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanMoveTo(t *testing.T) {
	allowed := map[[2]RoomStatus]bool{
		{StatusWaiting, StatusActive}:  true,
		{StatusActive, StatusFinished}: true,
	}
	all := append(append([]RoomStatus(nil), RoomStatuses...), RoomStatus("archived"))
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]RoomStatus{from, to}], from.CanMoveTo(to), "%s -> %s", from, to)
		}
	}
}

func validRoom() *Room {
	return &Room{
		ID:         "r1",
		GameType:   GameDice,
		Status:     StatusActive,
		BetAmount:  10,
		MaxPlayers: 2,
		Players:    []Player{{UserID: 1}, {UserID: 2}},
		Metadata:   Metadata{ServerSeedHash: "abc"},
	}
}

func TestRoomValidate(t *testing.T) {
	assert.NoError(t, validRoom().Validate())

	cases := map[string]func(r *Room){
		"zero bet":          func(r *Room) { r.BetAmount = 0 },
		"too many players":  func(r *Room) { r.MaxPlayers = 1 },
		"duplicate player":  func(r *Room) { r.Players[1].UserID = 1 },
		"unknown status":    func(r *Room) { r.Status = "archived" },
		"early seed reveal": func(r *Room) { r.Metadata.ServerSeedReveal = "seed" },
		"hash while waiting": func(r *Room) {
			r.Status = StatusWaiting
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRoom()
			corrupt(r)
			assert.Error(t, r.Validate())
		})
	}

	finished := validRoom()
	finished.Status = StatusFinished
	finished.Metadata.ServerSeedReveal = "seed"
	assert.NoError(t, finished.Validate())
}
