package domain

// RoomStats - срез для health-отчета и метрик
type RoomStats struct {
	Counts map[RoomStatus]int
	// активные комнаты с наступившим (или потерянным) дедлайном
	Stale  map[GameType]int
	Review int
}

func NewRoomStats() RoomStats {
	s := RoomStats{
		Counts: make(map[RoomStatus]int, len(RoomStatuses)),
		Stale:  make(map[GameType]int, len(GameTypes)),
	}
	for _, st := range RoomStatuses {
		s.Counts[st] = 0
	}
	for _, gt := range GameTypes {
		s.Stale[gt] = 0
	}
	return s
}
