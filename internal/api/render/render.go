package render

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/ledger"
	"github.com/JhonesBR/go-coinbot/internal/market"
	"github.com/JhonesBR/go-coinbot/internal/trade"
)

// Status maps a domain error to its HTTP status code.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, trade.ErrValidation), errors.Is(err, account.ErrNonPositiveAmount):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, account.ErrInsufficientFunds), errors.Is(err, account.ErrInsufficientHoldings):
		return fiber.StatusPaymentRequired
	case errors.Is(err, market.ErrAssetNotFound), errors.Is(err, trade.ErrQuoteNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, trade.ErrNotQuoteOwner):
		return fiber.StatusForbidden
	case errors.Is(err, trade.ErrQuoteResolved):
		return fiber.StatusConflict
	case errors.Is(err, market.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Internal failures are not echoed
// back to the caller.
func Error(c fiber.Ctx, err error) error {
	status := Status(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError && !errors.Is(err, trade.ErrTransient) {
		message = "internal server error"
		if errors.Is(err, ledger.ErrCorruptState) {
			message = ledger.ErrCorruptState.Error()
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// Validation writes a 422 for a request body that failed validation.
func Validation(c fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error": err.Error(),
	})
}
