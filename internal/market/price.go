package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrUnavailable = errors.New("market data unavailable")

// Price is the market snapshot of one asset. Percent changes are nil when
// the provider has no figure for the window.
type Price struct {
	Current   decimal.Decimal `json:"current_price"`
	Change1h  *float64        `json:"percent_change_1h"`
	Change24h *float64        `json:"percent_change_24h"`
	Change7d  *float64        `json:"percent_change_7d"`
	Sparkline []float64       `json:"sparkline,omitempty"`
}

// Source provides live prices keyed by asset ID. Failures wrap
// ErrUnavailable.
type Source interface {
	FetchPrices(ctx context.Context, assetIDs []string) (map[string]Price, error)
}

// PriceOf fetches a single asset price.
func PriceOf(ctx context.Context, src Source, assetID string) (Price, error) {
	prices, err := src.FetchPrices(ctx, []string{assetID})
	if err != nil {
		return Price{}, err
	}
	price, ok := prices[assetID]
	if !ok || !price.Current.IsPositive() {
		return Price{}, fmt.Errorf("%w: no price for %s", ErrUnavailable, assetID)
	}
	return price, nil
}
