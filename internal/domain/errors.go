package domain

import "errors"

// Error - отказ с устойчивым машинно-читаемым кодом.
// Любой такой отказ означает, что комната не изменилась.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ошибки валидации
var (
	ErrInvalidRoomID   = newError("invalid_room_id", "malformed room id")
	ErrInvalidBet      = newError("invalid_bet", "bet must be positive and within limits")
	ErrInvalidGameType = newError("invalid_game_type", "unknown game type")
	ErrInvalidOptions  = newError("invalid_options", "invalid room options")
)

// членство и права
var (
	ErrNotMember  = newError("not_member", "you are not a member of this room")
	ErrNotOwner   = newError("not_owner", "only the room owner can do this")
	ErrNotInvited = newError("not_invited", "this room is invite-only")
)

// ошибки состояния
var (
	ErrRoomNotFound           = newError("room_not_found", "room not found")
	ErrNotJoinable            = newError("not_joinable", "room is not joinable")
	ErrAlreadyMember          = newError("already_member", "already in this room")
	ErrAlreadyActive          = newError("already_active", "room is already active")
	ErrNotWaiting             = newError("not_waiting", "room is not waiting for players")
	ErrNotActive              = newError("not_active", "room is not active")
	ErrRoomFull               = newError("room_full", "room is full")
	ErrNeedTwoPlayers         = newError("need_two_players", "at least two players are required")
	ErrNotAllReady            = newError("not_all_ready", "not all players are ready")
	ErrNotYourTurn            = newError("not_your_turn", "it is not your turn")
	ErrTurnOrderUninitialized = newError("turn_order_uninitialized", "turn order is not initialized")
	ErrRollPending            = newError("roll_pending", "a roll or reveal is already pending")
	ErrWrongGameType          = newError("wrong_game_type", "action is not available for this game type")
	ErrPlayerDone             = newError("player_done", "you have already stood or busted")
	ErrRevealNotDue           = newError("reveal_not_due", "reveal time has not arrived yet")
	ErrNotFinished            = newError("not_finished", "room is not finished yet")
	ErrUnderReview            = newError("under_review", "room is held for manual review")
	ErrConflict               = newError("conflict", "room is busy, retry")
)

// внутренние ошибки, наружу не отдаются как есть
var (
	// CAS проиграл: версия комнаты изменилась с момента чтения
	ErrVersionConflict = errors.New("room version conflict")
	// метаданные не позволяют определить следующее состояние
	ErrInconsistent = errors.New("room state is inconsistent")
)

// Code returns the stable code of err, or "" if err is not a domain rejection.
func Code(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
