package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-coinbot/internal/ledger"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrNonPositiveAmount    = errors.New("amount must be positive")
)

// Service is the single entry point for balance and holdings mutation.
// Every call runs its own atomic cycle against the ledger.
type Service struct {
	ledger ledger.Ledger
}

func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// GetBalance returns zero for unknown users without creating an account.
func (s *Service) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	account, ok, err := s.ledger.Account(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	return account.Balance, nil
}

func (s *Service) EnsureAccount(ctx context.Context, userID string) (ledger.Account, error) {
	return s.ledger.Mutate(ctx, userID, func(*ledger.Account) error { return nil })
}

// AddBalance credits a positive delta.
func (s *Service) AddBalance(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if !delta.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	account, err := s.ledger.Mutate(ctx, userID, func(a *ledger.Account) error {
		a.Balance = a.Balance.Add(delta)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// SubtractBalance debits delta unless that would take the balance below
// zero, in which case it reports false and writes nothing.
func (s *Service) SubtractBalance(ctx context.Context, userID string, delta decimal.Decimal) (bool, error) {
	if !delta.IsPositive() {
		return false, ErrNonPositiveAmount
	}
	_, err := s.ledger.Mutate(ctx, userID, func(a *ledger.Account) error {
		if a.Balance.LessThan(delta) {
			return ErrInsufficientFunds
		}
		a.Balance = a.Balance.Sub(delta)
		return nil
	})
	if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ledger.ErrNegativeBalance) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetHoldings returns an empty mapping for unknown users.
func (s *Service) GetHoldings(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	account, ok, err := s.ledger.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]decimal.Decimal{}, nil
	}
	return account.Holdings, nil
}

// AddHoldings adds delta, which may be negative, to the held quantity of
// assetID. Non-negativity is left to the caller.
func (s *Service) AddHoldings(ctx context.Context, userID, assetID string, delta decimal.Decimal) (decimal.Decimal, error) {
	account, err := s.ledger.Mutate(ctx, userID, func(a *ledger.Account) error {
		a.Holdings[assetID] = a.Holding(assetID).Add(delta)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return account.Holding(assetID), nil
}

// Delta is a combined balance and holdings change. Positive values credit
// the account, negative values debit it.
type Delta struct {
	UserID   string
	AssetID  string
	Balance  decimal.Decimal
	Quantity decimal.Decimal
}

// Settle re-checks sufficiency against the account as it is at commit time
// and applies both sides of d in one atomic mutation.
func (s *Service) Settle(ctx context.Context, d Delta) (ledger.Account, error) {
	account, err := s.ledger.Mutate(ctx, d.UserID, func(a *ledger.Account) error {
		balance := a.Balance.Add(d.Balance)
		if balance.IsNegative() {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, a.Balance, d.Balance.Neg())
		}
		held := a.Holding(d.AssetID)
		quantity := held.Add(d.Quantity)
		if quantity.IsNegative() {
			return fmt.Errorf("%w: have %s %s, need %s", ErrInsufficientHoldings, held, d.AssetID, d.Quantity.Neg())
		}
		a.Balance = balance
		a.Holdings[d.AssetID] = quantity
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return account, nil
}
