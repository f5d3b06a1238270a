package trade

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-coinbot/internal/market"
	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Quote is a priced trade proposal awaiting the requester's confirmation.
// It lives only in memory.
type Quote struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Asset     market.Asset    `json:"asset"`
	Direction Direction       `json:"direction"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	USDValue  decimal.Decimal `json:"usd_value"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type Outcome string

const (
	Pending   Outcome = "pending"
	Settled   Outcome = "settled"
	Rejected  Outcome = "rejected"
	Cancelled Outcome = "cancelled"
	Expired   Outcome = "expired"
)

// Terminal reports whether no further signal can change the outcome.
func (o Outcome) Terminal() bool {
	return o != Pending
}

// Result is the state of a quote. Record is set when Settled; Reason and
// Err are set when Rejected.
type Result struct {
	Outcome Outcome       `json:"outcome"`
	Quote   Quote         `json:"quote"`
	Record  *txlog.Record `json:"record,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Err     error         `json:"-"`
}

// BuyAmount selects how a purchase is sized. Exactly one field must be set.
type BuyAmount struct {
	USD      *decimal.Decimal
	Quantity *decimal.Decimal
}

func fractionalDigits(d decimal.Decimal) int32 {
	s := d.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return int32(len(s) - i - 1)
}
