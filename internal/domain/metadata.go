package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// GameState - вариант метаданных, выбирается по gameType комнаты
type GameState interface {
	GameType() GameType
	cloneState() GameState
}

// отложенное раскрытие монетки
type PendingCoin struct {
	RevealAt     time.Time `json:"revealAt"`
	Nonce        uint64    `json:"nonce"`
	Result       Side      `json:"result,omitempty"`
	WinnerUserID *int64    `json:"winnerUserId,omitempty"`
}

type CoinflipState struct {
	PendingCoin *PendingCoin `json:"pendingCoin,omitempty"`
}

func (s *CoinflipState) GameType() GameType { return GameCoinflip }

func (s *CoinflipState) cloneState() GameState {
	c := *s
	if s.PendingCoin != nil {
		pc := *s.PendingCoin
		pc.WinnerUserID = clonePtr(s.PendingCoin.WinnerUserID)
		c.PendingCoin = &pc
	}
	return &c
}

type TurnPhase string

const (
	// игрок должен сделать ход до AdvanceAt
	PhaseTurn TurnPhase = "turn"
	// ход сделан, результат виден с RevealAt, переход к следующему до AdvanceAt
	PhaseReveal TurnPhase = "reveal"
)

type TurnPending struct {
	CurrentTurnUserID int64      `json:"currentTurnUserId"`
	Phase             TurnPhase  `json:"phase"`
	RevealAt          *time.Time `json:"revealAt,omitempty"`
	AdvanceAt         time.Time  `json:"advanceAt"`
}

// общее состояние пошаговых игр
type TurnState struct {
	Order     []int64      `json:"order"`
	Round     int          `json:"round"`
	NextNonce uint64       `json:"nextNonce"`
	Pending   *TurnPending `json:"pending,omitempty"`
}

func (t *TurnState) Turn() *TurnState { return t }

func (t TurnState) clone() TurnState {
	c := t
	c.Order = append([]int64(nil), t.Order...)
	if t.Pending != nil {
		p := *t.Pending
		p.RevealAt = clonePtr(t.Pending.RevealAt)
		c.Pending = &p
	}
	return c
}

// TakeNonce выдает следующий уникальный nonce матча
func (t *TurnState) TakeNonce() uint64 {
	n := t.NextNonce
	t.NextNonce++
	return n
}

type DiceState struct {
	TurnState
}

func (s *DiceState) GameType() GameType    { return GameDice }
func (s *DiceState) cloneState() GameState { return &DiceState{TurnState: s.TurnState.clone()} }

type DicePokerState struct {
	TurnState
}

func (s *DicePokerState) GameType() GameType { return GameDicePoker }
func (s *DicePokerState) cloneState() GameState {
	return &DicePokerState{TurnState: s.TurnState.clone()}
}

type BlackjackDiceState struct {
	TurnState
}

func (s *BlackjackDiceState) GameType() GameType { return GameBlackjackDice }
func (s *BlackjackDiceState) cloneState() GameState {
	return &BlackjackDiceState{TurnState: s.TurnState.clone()}
}

// TurnOf возвращает общее пошаговое состояние или nil для coinflip
func TurnOf(s GameState) *TurnState {
	if t, ok := s.(interface{ Turn() *TurnState }); ok {
		return t.Turn()
	}
	return nil
}

// NewGameState returns the empty variant for a game type.
func NewGameState(gt GameType) (GameState, error) {
	switch gt {
	case GameCoinflip:
		return &CoinflipState{}, nil
	case GameDice:
		return &DiceState{}, nil
	case GameDicePoker:
		return &DicePokerState{}, nil
	case GameBlackjackDice:
		return &BlackjackDiceState{}, nil
	}
	return nil, ErrInvalidGameType
}

type Metadata struct {
	ServerSeedHash   string
	ServerSeedReveal string
	State            GameState
}

func (m Metadata) Clone() Metadata {
	c := m
	if m.State != nil {
		c.State = m.State.cloneState()
	}
	return c
}

type metadataJSON struct {
	ServerSeedHash   string          `json:"serverSeedHash,omitempty"`
	ServerSeedReveal string          `json:"serverSeedReveal,omitempty"`
	State            json.RawMessage `json:"state,omitempty"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := metadataJSON{
		ServerSeedHash:   m.ServerSeedHash,
		ServerSeedReveal: m.ServerSeedReveal,
	}
	if m.State != nil {
		raw, err := json.Marshal(m.State)
		if err != nil {
			return nil, err
		}
		out.State = raw
	}
	return json.Marshal(out)
}

// DecodeMetadata decodes persisted metadata into the variant owned by gt.
// Untyped blobs never leave the storage boundary.
func DecodeMetadata(gt GameType, data []byte) (Metadata, error) {
	var raw metadataJSON
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return Metadata{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	state, err := NewGameState(gt)
	if err != nil {
		return Metadata{}, err
	}
	if len(raw.State) > 0 && string(raw.State) != "null" {
		if err := json.Unmarshal(raw.State, state); err != nil {
			return Metadata{}, fmt.Errorf("decode %s state: %w", gt, err)
		}
	}
	return Metadata{
		ServerSeedHash:   raw.ServerSeedHash,
		ServerSeedReveal: raw.ServerSeedReveal,
		State:            state,
	}, nil
}
