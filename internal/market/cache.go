package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const priceKeyPrefix = "coinbot:price:"

// CachedSource keeps recent prices in Redis for ttl and only asks the next
// source for assets that are missing. Redis failures fall through to the
// next source.
type CachedSource struct {
	next   Source
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewCachedSource(next Source, client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *CachedSource {
	return &CachedSource{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *CachedSource) FetchPrices(ctx context.Context, assetIDs []string) (map[string]Price, error) {
	prices := make(map[string]Price, len(assetIDs))
	missing := s.cached(ctx, assetIDs, prices)
	if len(missing) == 0 {
		return prices, nil
	}

	fresh, err := s.next.FetchPrices(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	for id, price := range fresh {
		prices[id] = price
		data, err := json.Marshal(price)
		if err != nil {
			continue
		}
		pipe.Set(ctx, priceKeyPrefix+id, data, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to cache prices")
	}
	return prices, nil
}

func (s *CachedSource) cached(ctx context.Context, assetIDs []string, into map[string]Price) []string {
	keys := make([]string, len(assetIDs))
	for i, id := range assetIDs {
		keys[i] = priceKeyPrefix + id
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.logger.WithError(err).Warn("price cache unavailable")
		return assetIDs
	}

	var missing []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, assetIDs[i])
			continue
		}
		var price Price
		if err := json.Unmarshal([]byte(raw), &price); err != nil {
			missing = append(missing, assetIDs[i])
			continue
		}
		into[assetIDs[i]] = price
	}
	return missing
}
