package domain

import (
	"fmt"
	"time"
)

type GameType string

const (
	GameCoinflip      GameType = "coinflip"
	GameDice          GameType = "dice"
	GameDicePoker     GameType = "dicepoker"
	GameBlackjackDice GameType = "blackjackdice"
)

// все поддерживаемые PvP игры, порядок используется в отчетах
var GameTypes = []GameType{GameCoinflip, GameDice, GameDicePoker, GameBlackjackDice}

func ParseGameType(s string) (GameType, error) {
	for _, gt := range GameTypes {
		if string(gt) == s {
			return gt, nil
		}
	}
	return "", ErrInvalidGameType
}

// игры с очередностью ходов (pending{revealAt, advanceAt, currentTurnUserId})
func (g GameType) TurnBased() bool {
	return g == GameDice || g == GameDicePoker || g == GameBlackjackDice
}

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusActive   RoomStatus = "active"
	StatusFinished RoomStatus = "finished"
)

var RoomStatuses = []RoomStatus{StatusWaiting, StatusActive, StatusFinished}

func (s RoomStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// статус двигается только вперед и только на один шаг: waiting -> active -> finished
func (s RoomStatus) CanMoveTo(next RoomStatus) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

// сторона монетки
type Side string

const (
	SideHeads Side = "heads"
	SideTails Side = "tails"
)

// один бросок кубика; значение скрывается от клиентов до RevealAt
type Roll struct {
	Value    int       `json:"value"`
	Nonce    uint64    `json:"nonce"`
	RevealAt time.Time `json:"revealAt"`
	Hidden   bool      `json:"hidden,omitempty"`
}

type Player struct {
	UserID   int64     `json:"userId"`
	Ready    bool      `json:"ready"`
	Side     Side      `json:"side,omitempty"`
	Rolls    []Roll    `json:"rolls,omitempty"`
	Stood    bool      `json:"stood,omitempty"`
	Busted   bool      `json:"busted,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// сумма всех бросков игрока
func (p *Player) Total() int {
	total := 0
	for _, r := range p.Rolls {
		total += r.Value
	}
	return total
}

// игрок закончил (blackjack-dice): остановился или перебрал
func (p *Player) Done() bool {
	return p.Stood || p.Busted
}

// настройки конкретной игры
type Options struct {
	Sides  int `json:"sides,omitempty"`
	Rounds int `json:"rounds,omitempty"`
}

type Room struct {
	ID           string     `json:"roomId"`
	GameType     GameType   `json:"gameType"`
	Status       RoomStatus `json:"status"`
	OwnerUserID  int64      `json:"ownerUserId"`
	BetAmount    int64      `json:"betAmount"`
	MaxPlayers   int        `json:"maxPlayers"`
	Private      bool       `json:"private"`
	Invited      []int64    `json:"invited,omitempty"`
	Options      Options    `json:"options"`
	Players      []Player   `json:"players"`
	Metadata     Metadata   `json:"metadata"`
	WinnerUserID *int64     `json:"winnerUserId,omitempty"`
	Draw         bool       `json:"draw,omitempty"`
	DeadlineAt   *time.Time `json:"deadlineAt,omitempty"`
	NeedsReview  bool       `json:"needsReview,omitempty"`
	ReviewReason string     `json:"reviewReason,omitempty"`
	Version      int64      `json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	DeletedAt    *time.Time `json:"-"`

	// секрет раунда, до finished никогда не покидает сервер
	ServerSeed string `json:"-"`
}

func (r *Room) Player(userID int64) *Player {
	for i := range r.Players {
		if r.Players[i].UserID == userID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) IsMember(userID int64) bool {
	return r.Player(userID) != nil
}

func (r *Room) IsInvited(userID int64) bool {
	for _, id := range r.Invited {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *Room) AllReady() bool {
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return len(r.Players) > 0
}

func (r *Room) Deleted() bool {
	return r.DeletedAt != nil
}

// Clone returns a deep copy. Mutations always work on a clone so a rejected
// action leaves the stored room untouched.
func (r *Room) Clone() *Room {
	c := *r
	c.Invited = append([]int64(nil), r.Invited...)
	c.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		p.Rolls = append([]Roll(nil), p.Rolls...)
		c.Players[i] = p
	}
	c.Metadata = r.Metadata.Clone()
	c.WinnerUserID = clonePtr(r.WinnerUserID)
	c.DeadlineAt = clonePtr(r.DeadlineAt)
	c.StartedAt = clonePtr(r.StartedAt)
	c.FinishedAt = clonePtr(r.FinishedAt)
	c.DeletedAt = clonePtr(r.DeletedAt)
	return &c
}

// Validate проверяет инварианты комнаты перед записью
func (r *Room) Validate() error {
	if r.BetAmount <= 0 {
		return fmt.Errorf("room %s: bet must be positive", r.ID)
	}
	if len(r.Players) > r.MaxPlayers {
		return fmt.Errorf("room %s: %d players exceed max %d", r.ID, len(r.Players), r.MaxPlayers)
	}
	seen := make(map[int64]struct{}, len(r.Players))
	for _, p := range r.Players {
		if _, dup := seen[p.UserID]; dup {
			return fmt.Errorf("room %s: duplicate player %d", r.ID, p.UserID)
		}
		seen[p.UserID] = struct{}{}
	}
	if r.Status.rank() < 0 {
		return fmt.Errorf("room %s: unknown status %q", r.ID, r.Status)
	}
	if r.Metadata.ServerSeedReveal != "" && r.Status != StatusFinished {
		return fmt.Errorf("room %s: seed revealed while %s", r.ID, r.Status)
	}
	if r.Metadata.ServerSeedHash != "" && r.Status == StatusWaiting {
		return fmt.Errorf("room %s: commitment published while waiting", r.ID)
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
