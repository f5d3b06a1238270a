package quote

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/JhonesBR/go-coinbot/internal/api/render"
	"github.com/JhonesBR/go-coinbot/internal/helper"
	"github.com/JhonesBR/go-coinbot/internal/trade"
)

func QuoteBuyHandler(engine *trade.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Parse quote buy schema
		var request QuoteBuySchema
		if err := c.Bind().Body(&request); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&request); err != nil {
			return render.Validation(c, err)
		}

		quote, err := engine.QuoteBuy(c, request.UserId, request.Asset, trade.BuyAmount{
			USD:      request.USDAmount,
			Quantity: request.AssetQuantity,
		})
		if err != nil {
			return render.Error(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(quote)
	}
}

func QuoteSellHandler(engine *trade.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Parse quote sell schema
		var request QuoteSellSchema
		if err := c.Bind().Body(&request); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&request); err != nil {
			return render.Validation(c, err)
		}

		quote, err := engine.QuoteSell(c, request.UserId, request.Asset, *request.AssetQuantity)
		if err != nil {
			return render.Error(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(quote)
	}
}

func GetQuoteHandler(engine *trade.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return render.Error(c, trade.ErrQuoteNotFound)
		}

		result, err := engine.Get(id)
		if err != nil {
			return render.Error(c, err)
		}

		return c.JSON(result)
	}
}

// AwaitQuoteHandler holds the request until the quote resolves or the
// optional timeout query parameter elapses. A quote still pending at the
// deadline is answered with 202.
func AwaitQuoteHandler(engine *trade.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return render.Error(c, trade.ErrQuoteNotFound)
		}

		timeout := maxAwait
		if raw := c.Query("timeout"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error": "timeout must be a positive duration",
				})
			}
			timeout = min(parsed, maxAwait)
		}

		ctx, cancel := context.WithTimeout(c, timeout)
		defer cancel()

		result, err := engine.Await(ctx, id)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return c.Status(fiber.StatusAccepted).JSON(result)
		}
		if err != nil {
			return render.Error(c, err)
		}

		return c.JSON(result)
	}
}

func ConfirmQuoteHandler(engine *trade.Engine) fiber.Handler {
	return signalHandler(engine.Confirm)
}

func CancelQuoteHandler(engine *trade.Engine) fiber.Handler {
	return signalHandler(engine.Cancel)
}

type signalFunc func(ctx context.Context, quoteID uuid.UUID, userID string) (trade.Result, error)

func signalHandler(signal signalFunc) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return render.Error(c, trade.ErrQuoteNotFound)
		}

		// Parse quote signal schema
		var request QuoteSignalSchema
		if err := c.Bind().Body(&request); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&request); err != nil {
			return render.Validation(c, err)
		}

		result, err := signal(c, id, request.UserId)
		switch {
		case errors.Is(err, trade.ErrQuoteResolved):
			// The first resolution stands, report it
			return c.Status(fiber.StatusConflict).JSON(result)
		case err != nil:
			return render.Error(c, err)
		case result.Outcome == trade.Rejected:
			return c.Status(render.Status(result.Err)).JSON(result)
		}

		return c.JSON(result)
	}
}
