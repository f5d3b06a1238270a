package user

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/portfolio"
	"github.com/JhonesBR/go-coinbot/internal/reward"
	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

const defaultTransactionsPageSize = 5

func InitializeRoutes(app *fiber.App, accounts *account.Service, history txlog.Log, valuer *portfolio.Valuer, rewards *reward.Service) {
	app.Get("/v1/users/:id/balance", GetBalanceHandler(accounts))
	app.Get("/v1/users/:id/holdings", GetHoldingsHandler(accounts))
	app.Get("/v1/users/:id/transactions", ListTransactionsHandler(history))
	app.Get("/v1/users/:id/portfolio", GetPortfolioHandler(valuer))
	app.Post("/v1/users/:id/messages", PostMessageHandler(rewards))
}
