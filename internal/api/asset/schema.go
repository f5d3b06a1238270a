package asset

import (
	"github.com/JhonesBR/go-coinbot/internal/market"
)

// AssetShowSchema is a catalog entry with its live market data.
type AssetShowSchema struct {
	market.Asset
	market.Price
}
