package asset

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-coinbot/internal/api/render"
	"github.com/JhonesBR/go-coinbot/internal/market"
)

// ListAssetsHandler lists the catalog, optionally narrowed by ?query=,
// with current prices. Assets the provider has no price for are omitted.
func ListAssetsHandler(catalog *market.Catalog, prices market.Source) fiber.Handler {
	return func(c fiber.Ctx) error {
		assets := catalog.Search(c.Query("query"))
		items := make([]AssetShowSchema, 0, len(assets))
		if len(assets) == 0 {
			return c.JSON(items)
		}

		ids := make([]string, 0, len(assets))
		for _, a := range assets {
			ids = append(ids, a.ID)
		}
		quotes, err := prices.FetchPrices(c, ids)
		if err != nil {
			return render.Error(c, err)
		}

		for _, a := range assets {
			price, ok := quotes[a.ID]
			if !ok {
				continue
			}
			items = append(items, AssetShowSchema{Asset: a, Price: price})
		}
		return c.JSON(items)
	}
}
