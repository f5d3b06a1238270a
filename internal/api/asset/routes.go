package asset

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-coinbot/internal/market"
)

func InitializeRoutes(app *fiber.App, catalog *market.Catalog, prices market.Source) {
	app.Get("/v1/assets", ListAssetsHandler(catalog, prices))
}
