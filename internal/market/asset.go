package market

import (
	"errors"
	"fmt"
	"strings"
)

var ErrAssetNotFound = errors.New("coin not found")

// Asset is a tradable catalog entry. Precision is the maximum number of
// fractional digits a quantity of the asset may carry.
type Asset struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Precision int32  `json:"precision"`
}

// Catalog is the immutable set of tracked assets, in display order.
type Catalog struct {
	assets []Asset
}

func NewCatalog(assets ...Asset) *Catalog {
	return &Catalog{assets: append([]Asset(nil), assets...)}
}

// DefaultCatalog returns the assets the bot trades.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Asset{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Precision: 8},
		Asset{ID: "monero", Symbol: "XMR", Name: "Monero", Precision: 12},
		Asset{ID: "solana", Symbol: "SOL", Name: "Solana", Precision: 9},
		Asset{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", Precision: 18},
	)
}

func (c *Catalog) All() []Asset {
	return append([]Asset(nil), c.assets...)
}

func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.assets))
	for _, a := range c.assets {
		ids = append(ids, a.ID)
	}
	return ids
}

// Lookup resolves an asset by id, symbol or name, ignoring case.
func (c *Catalog) Lookup(query string) (Asset, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, a := range c.assets {
		if a.ID == q || strings.ToLower(a.Symbol) == q || strings.ToLower(a.Name) == q {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("%w: %q", ErrAssetNotFound, query)
}

// Search returns assets whose symbol or name contains query. An empty
// query matches everything.
func (c *Catalog) Search(query string) []Asset {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.All()
	}
	var found []Asset
	for _, a := range c.assets {
		if strings.Contains(strings.ToLower(a.Symbol), q) || strings.Contains(strings.ToLower(a.Name), q) {
			found = append(found, a)
		}
	}
	return found
}
