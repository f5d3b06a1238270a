package quote

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-coinbot/internal/trade"
)

// maxAwait caps how long a client may hold an await request open.
const maxAwait = 2 * time.Minute

func InitializeRoutes(app *fiber.App, engine *trade.Engine) {
	app.Post("/v1/quotes/buy", QuoteBuyHandler(engine))
	app.Post("/v1/quotes/sell", QuoteSellHandler(engine))
	app.Get("/v1/quotes/:id", GetQuoteHandler(engine))
	app.Get("/v1/quotes/:id/await", AwaitQuoteHandler(engine))
	app.Post("/v1/quotes/:id/confirm", ConfirmQuoteHandler(engine))
	app.Post("/v1/quotes/:id/cancel", CancelQuoteHandler(engine))
}
