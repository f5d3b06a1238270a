package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCorruptState    = errors.New("ledger state is corrupt")
	ErrNegativeBalance = errors.New("balance would become negative")
	ErrNegativeHolding = errors.New("holding would become negative")
)

// DefaultStartingBalance is credited to every account on creation.
var DefaultStartingBalance = decimal.NewFromInt(1000)

// Account is the per-user balance and holdings record.
type Account struct {
	Balance  decimal.Decimal
	Holdings map[string]decimal.Decimal
}

// Snapshot maps user IDs to their accounts.
type Snapshot map[string]Account

func NewAccount(balance decimal.Decimal) Account {
	return Account{
		Balance:  balance,
		Holdings: make(map[string]decimal.Decimal),
	}
}

// Holding returns the held quantity of an asset, zero when absent.
func (a Account) Holding(assetID string) decimal.Decimal {
	return a.Holdings[assetID]
}

func (a Account) Clone() Account {
	holdings := make(map[string]decimal.Decimal, len(a.Holdings))
	for id, qty := range a.Holdings {
		holdings[id] = qty
	}
	return Account{Balance: a.Balance, Holdings: holdings}
}

// Validate reports a negative balance or a negative holding.
func (a Account) Validate() error {
	if a.Balance.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeBalance, a.Balance)
	}
	for assetID, qty := range a.Holdings {
		if qty.IsNegative() {
			return fmt.Errorf("%w: %s %s", ErrNegativeHolding, qty, assetID)
		}
	}
	return nil
}
