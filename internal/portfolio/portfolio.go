package portfolio

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/market"
)

// Position is one held asset valued at the current market price.
type Position struct {
	Asset    market.Asset    `json:"asset"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    market.Price    `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

type Valuation struct {
	UserID    string          `json:"user_id"`
	Positions []Position      `json:"positions"`
	Total     decimal.Decimal `json:"total_value"`
}

type Valuer struct {
	accounts *account.Service
	catalog  *market.Catalog
	prices   market.Source
}

func NewValuer(accounts *account.Service, catalog *market.Catalog, prices market.Source) *Valuer {
	return &Valuer{accounts: accounts, catalog: catalog, prices: prices}
}

// Value prices every asset the user holds a positive quantity of, in
// catalog order. A non-empty assetQuery restricts the valuation to that
// asset. Prices are only fetched when there is something to value.
func (v *Valuer) Value(ctx context.Context, userID, assetQuery string) (Valuation, error) {
	assets := v.catalog.All()
	if assetQuery != "" {
		asset, err := v.catalog.Lookup(assetQuery)
		if err != nil {
			return Valuation{}, err
		}
		assets = []market.Asset{asset}
	}

	holdings, err := v.accounts.GetHoldings(ctx, userID)
	if err != nil {
		return Valuation{}, err
	}

	valuation := Valuation{UserID: userID, Positions: []Position{}, Total: decimal.Zero}
	var ids []string
	for _, asset := range assets {
		qty := holdings[asset.ID]
		if !qty.IsPositive() {
			continue
		}
		valuation.Positions = append(valuation.Positions, Position{Asset: asset, Quantity: qty})
		ids = append(ids, asset.ID)
	}
	if len(ids) == 0 {
		return valuation, nil
	}

	prices, err := v.prices.FetchPrices(ctx, ids)
	if err != nil {
		return Valuation{}, err
	}
	for i := range valuation.Positions {
		pos := &valuation.Positions[i]
		price, ok := prices[pos.Asset.ID]
		if !ok {
			return Valuation{}, fmt.Errorf("%w: no price for %s", market.ErrUnavailable, pos.Asset.ID)
		}
		pos.Price = price
		pos.Value = pos.Quantity.Mul(price.Current)
		valuation.Total = valuation.Total.Add(pos.Value)
	}
	return valuation, nil
}
