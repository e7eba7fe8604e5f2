package domain

import "time"

type EventType string

const (
	EventRoomUpdated  EventType = "room-updated"
	EventRoomStarted  EventType = "room-started"
	EventRoomFinished EventType = "room-finished"
	EventRoomDeleted  EventType = "room-deleted"
)

// итог матча, уходит вместе с room-finished
type Result struct {
	WinnerUserID     *int64 `json:"winnerUserId,omitempty"`
	Draw             bool   `json:"draw"`
	ServerSeedHash   string `json:"serverSeedHash"`
	ServerSeedReveal string `json:"serverSeedReveal"`
}

// Event - ровно одно событие на каждую сохраненную мутацию комнаты
type Event struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"roomId"`
	Version   int64     `json:"version"`
	ServerNow int64     `json:"serverNow"`
	Room      *Room     `json:"room,omitempty"`
	Result    *Result   `json:"result,omitempty"`
}

// Snapshot is the client view of a room: hidden rolls masked, serverNow attached.
type Snapshot struct {
	*Room
	ServerNow    int64  `json:"serverNow"`
	ServerNowISO string `json:"serverNowIso"`
}

// MaskedCopy скрывает значения бросков, время раскрытия которых еще не наступило
func (r *Room) MaskedCopy(now time.Time) *Room {
	c := r.Clone()
	for i := range c.Players {
		for j := range c.Players[i].Rolls {
			roll := &c.Players[i].Rolls[j]
			if roll.RevealAt.After(now) {
				roll.Value = 0
				roll.Hidden = true
			}
		}
	}
	return c
}

func NewSnapshot(r *Room, now time.Time) Snapshot {
	return Snapshot{
		Room:         r.MaskedCopy(now),
		ServerNow:    now.UnixMilli(),
		ServerNowISO: now.UTC().Format(time.RFC3339Nano),
	}
}

func NewEvent(t EventType, r *Room, now time.Time) Event {
	ev := Event{
		Type:      t,
		RoomID:    r.ID,
		Version:   r.Version,
		ServerNow: now.UnixMilli(),
	}
	if t != EventRoomDeleted {
		ev.Room = r.MaskedCopy(now)
	}
	if t == EventRoomFinished {
		ev.Result = &Result{
			WinnerUserID:     clonePtr(r.WinnerUserID),
			Draw:             r.Draw,
			ServerSeedHash:   r.Metadata.ServerSeedHash,
			ServerSeedReveal: r.Metadata.ServerSeedReveal,
		}
	}
	return ev
}
