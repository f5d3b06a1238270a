package user

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/api/render"
	"github.com/JhonesBR/go-coinbot/internal/helper"
	"github.com/JhonesBR/go-coinbot/internal/portfolio"
	"github.com/JhonesBR/go-coinbot/internal/reward"
	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

func GetBalanceHandler(accounts *account.Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fiber.ErrBadRequest
		}

		balance, err := accounts.GetBalance(c, id)
		if err != nil {
			return render.Error(c, err)
		}

		return c.JSON(BalanceResponseSchema{
			UserId:  id,
			Balance: balance,
		})
	}
}

func GetHoldingsHandler(accounts *account.Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fiber.ErrBadRequest
		}

		holdings, err := accounts.GetHoldings(c, id)
		if err != nil {
			return render.Error(c, err)
		}

		return c.JSON(HoldingsResponseSchema{
			UserId:   id,
			Holdings: holdings,
		})
	}
}

func ListTransactionsHandler(history txlog.Log) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fiber.ErrBadRequest
		}

		// Newest first, paged in memory
		pagination := helper.GetPagination[txlog.Record](c, defaultTransactionsPageSize)
		pagination.Fill(history.ListFor(c, id))

		return c.JSON(pagination)
	}
}

func GetPortfolioHandler(valuer *portfolio.Valuer) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fiber.ErrBadRequest
		}

		valuation, err := valuer.Value(c, id, c.Query("asset"))
		if err != nil {
			return render.Error(c, err)
		}

		return c.JSON(valuation)
	}
}

func PostMessageHandler(rewards *reward.Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return fiber.ErrBadRequest
		}

		// Parse message schema, an empty body is a plain user message
		var message MessageSchema
		if len(c.Body()) > 0 {
			if err := c.Bind().Body(&message); err != nil {
				return fiber.ErrBadRequest
			}
		}
		if message.Bot {
			return c.JSON(MessageResponseSchema{UserId: id})
		}

		grant, err := rewards.Reward(c, id)
		if err != nil {
			return render.Error(c, err)
		}

		response := MessageResponseSchema{
			UserId:  id,
			Granted: grant.Granted,
			Amount:  grant.Amount,
		}
		if grant.Granted {
			response.Balance = &grant.Balance
		}
		return c.JSON(response)
	}
}
