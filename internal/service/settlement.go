package service

import "context"

// Settlement - порт во внешний кошелек. Движок только сообщает, что ставка
// зарезервирована, выплачена или возвращена; балансы ведутся снаружи.
type Settlement interface {
	Reserve(ctx context.Context, userID int64, roomID string, amount int64) error
	Payout(ctx context.Context, winnerUserID int64, roomID string, pot int64) error
	Refund(ctx context.Context, userID int64, roomID string, amount int64) error
}

// NopSettlement ничего не делает, используется пока кошелек не подключен
type NopSettlement struct{}

func (NopSettlement) Reserve(context.Context, int64, string, int64) error { return nil }
func (NopSettlement) Payout(context.Context, int64, string, int64) error { return nil }
func (NopSettlement) Refund(context.Context, int64, string, int64) error { return nil }
