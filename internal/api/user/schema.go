package user

import (
	"github.com/shopspring/decimal"
)

type BalanceResponseSchema struct {
	UserId  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type HoldingsResponseSchema struct {
	UserId   string                     `json:"user_id"`
	Holdings map[string]decimal.Decimal `json:"holdings"`
}

// MessageSchema describes a chat message seen by the bot. Messages from
// other bots never earn rewards.
type MessageSchema struct {
	Bot bool `json:"bot"`
}

type MessageResponseSchema struct {
	UserId  string           `json:"user_id"`
	Granted bool             `json:"granted"`
	Amount  decimal.Decimal  `json:"amount"`
	Balance *decimal.Decimal `json:"balance,omitempty"`
}
