package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/api/asset"
	"github.com/JhonesBR/go-coinbot/internal/api/quote"
	"github.com/JhonesBR/go-coinbot/internal/api/user"
	"github.com/JhonesBR/go-coinbot/internal/market"
	"github.com/JhonesBR/go-coinbot/internal/portfolio"
	"github.com/JhonesBR/go-coinbot/internal/reward"
	"github.com/JhonesBR/go-coinbot/internal/trade"
	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

// Services are the domain components the HTTP surface is built on.
type Services struct {
	Accounts  *account.Service
	History   txlog.Log
	Catalog   *market.Catalog
	Prices    market.Source
	Portfolio *portfolio.Valuer
	Rewards   *reward.Service
	Engine    *trade.Engine
}

func InitializeRoutes(app *fiber.App, s Services) {
	user.InitializeRoutes(app, s.Accounts, s.History, s.Portfolio, s.Rewards)
	asset.InitializeRoutes(app, s.Catalog, s.Prices)
	quote.InitializeRoutes(app, s.Engine)
}
