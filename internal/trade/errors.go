package trade

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-coinbot/internal/account"
)

var (
	ErrValidation        = errors.New("invalid trade request")
	ErrNonPositiveAmount = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrAmbiguousAmount   = fmt.Errorf("%w: specify exactly one of usd amount or asset quantity", ErrValidation)
	ErrAmountTooSmall    = fmt.Errorf("%w: transaction amount too small", ErrValidation)
	ErrPrecisionExceeded = fmt.Errorf("%w: too many decimal places", ErrValidation)

	ErrInsufficientFunds    = account.ErrInsufficientFunds
	ErrInsufficientHoldings = account.ErrInsufficientHoldings

	ErrQuoteNotFound = errors.New("quote not found")
	ErrNotQuoteOwner = errors.New("quote belongs to another user")
	ErrQuoteResolved = errors.New("quote already resolved")
	ErrTransient     = errors.New("settlement failed, please try again")
)

// AmountTooSmallError reports a trade below the minimum USD value together
// with the smallest quantity that would be accepted at the quoted price.
type AmountTooSmallError struct {
	Symbol      string
	MinimumUSD  decimal.Decimal
	UnitPrice   decimal.Decimal
	MinQuantity decimal.Decimal
}

func (e *AmountTooSmallError) Error() string {
	return fmt.Sprintf("transaction amount too small: minimum is $%s USD (%s %s at $%s)",
		e.MinimumUSD.StringFixed(2), e.MinQuantity, e.Symbol, e.UnitPrice)
}

func (e *AmountTooSmallError) Unwrap() error { return ErrAmountTooSmall }

// PrecisionError reports a quantity with more fractional digits than the
// asset supports.
type PrecisionError struct {
	Asset     string
	Precision int32
	Got       int32
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("%s only supports up to %d decimal places, got %d", e.Asset, e.Precision, e.Got)
}

func (e *PrecisionError) Unwrap() error { return ErrPrecisionExceeded }
