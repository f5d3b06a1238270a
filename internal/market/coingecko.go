package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

type CoinGeckoConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit int // requests per minute
}

// CoinGecko reads prices from the /coins/markets endpoint.
type CoinGecko struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCoinGeckoURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}

	return &CoinGecko{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimit)), 1),
	}
}

type coinMarket struct {
	ID             string          `json:"id"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PriceChange1h  *float64        `json:"price_change_percentage_1h_in_currency"`
	PriceChange24h *float64        `json:"price_change_percentage_24h_in_currency"`
	PriceChange7d  *float64        `json:"price_change_percentage_7d_in_currency"`
	SparklineIn7d  *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

func (c *CoinGecko) FetchPrices(ctx context.Context, assetIDs []string) (map[string]Price, error) {
	if len(assetIDs) == 0 {
		return map[string]Price{}, nil
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: coingecko: rate limit wait: %v", ErrUnavailable, err)
	}

	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("ids", strings.Join(assetIDs, ","))
	query.Set("sparkline", "true")
	query.Set("price_change_percentage", "1h,24h,7d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: coingecko: status %d", ErrUnavailable, resp.StatusCode)
	}

	var markets []coinMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("%w: coingecko: decode response: %v", ErrUnavailable, err)
	}

	prices := make(map[string]Price, len(markets))
	for _, m := range markets {
		if !m.CurrentPrice.IsPositive() {
			continue
		}
		price := Price{
			Current:   m.CurrentPrice,
			Change1h:  m.PriceChange1h,
			Change24h: m.PriceChange24h,
			Change7d:  m.PriceChange7d,
		}
		if m.SparklineIn7d != nil {
			price.Sparkline = m.SparklineIn7d.Price
		}
		prices[m.ID] = price
	}
	return prices, nil
}
