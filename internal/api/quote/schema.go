package quote

import (
	"github.com/shopspring/decimal"
)

// QuoteBuySchema sizes a purchase by exactly one of USDAmount or
// AssetQuantity.
type QuoteBuySchema struct {
	UserId        string           `json:"user_id" validate:"required"`
	Asset         string           `json:"asset" validate:"required"`
	USDAmount     *decimal.Decimal `json:"usd_amount"`
	AssetQuantity *decimal.Decimal `json:"asset_quantity"`
}

type QuoteSellSchema struct {
	UserId        string           `json:"user_id" validate:"required"`
	Asset         string           `json:"asset" validate:"required"`
	AssetQuantity *decimal.Decimal `json:"asset_quantity" validate:"required"`
}

type QuoteSignalSchema struct {
	UserId string `json:"user_id" validate:"required"`
}
