package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	logx "github.com/coingraph/server/pkg/logger"
	"github.com/go-resty/resty/v2"
)

// Config describes the upstream market-data service connection.
type Config struct {
	BaseURL        string `split_words:"true" default:"http://localhost:8001"`
	TimeoutSeconds int    `split_words:"true" default:"10"`
	CacheTTL       string `split_words:"true" default:"60s"`
}

// Service fetches price and historical data from the upstream market-data
// service through a TTL cache. Upstream failures of any kind (timeout,
// non-2xx, transport, empty body) are normalized to a nil payload so the
// caller's retry logic triggers uniformly; errors are logged, never returned.
type Service struct {
	client *resty.Client
	cache  Cache
	ttl    time.Duration
}

// New builds a Service. Pass NoopCache{} when no cache backend is available.
func New(cfg Config, cache Cache) *Service {
	ttl, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil || ttl <= 0 {
		ttl = 60 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	return &Service{
		client: client,
		cache:  cache,
		ttl:    ttl,
	}
}

// CurrentPrice returns the current price payload for coinID, or nil when no
// data is available.
func (s *Service) CurrentPrice(ctx context.Context, coinID string) *PricePayload {
	key := priceKey(coinID)

	if raw, ok := s.cache.Get(ctx, key); ok {
		var payload PricePayload
		if err := json.Unmarshal(raw, &payload); err == nil && len(payload) > 0 {
			logx.Debug().Str("coin_id", coinID).Msg("cache hit for price data")
			return &payload
		}
		logx.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	raw := s.get(ctx, "/price/"+url.PathEscape(coinID), nil, coinID)
	if raw == nil {
		return nil
	}

	var payload PricePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logx.Error().Err(err).Str("coin_id", coinID).Msg("failed to decode price payload")
		return nil
	}
	if len(payload) == 0 {
		logx.Warn().Str("coin_id", coinID).Msg("no price data returned")
		return nil
	}

	s.cache.Set(ctx, key, raw, s.ttl)
	return &payload
}

// Historical returns the historical series for coinID over the given number
// of days, or nil when no data is available.
func (s *Service) Historical(ctx context.Context, coinID string, days int) *HistoricalPayload {
	key := historicalKey(coinID, days)

	if raw, ok := s.cache.Get(ctx, key); ok {
		var payload HistoricalPayload
		if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Prices) > 0 {
			logx.Debug().Str("coin_id", coinID).Int("days", days).Msg("cache hit for historical data")
			return &payload
		}
		logx.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	query := map[string]string{"days": strconv.Itoa(days)}
	raw := s.get(ctx, "/historical/"+url.PathEscape(coinID), query, coinID)
	if raw == nil {
		return nil
	}

	var payload HistoricalPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logx.Error().Err(err).Str("coin_id", coinID).Msg("failed to decode historical payload")
		return nil
	}
	if len(payload.Prices) == 0 {
		logx.Warn().Str("coin_id", coinID).Int("days", days).Msg("no historical data returned")
		return nil
	}

	s.cache.Set(ctx, key, raw, s.ttl)
	return &payload
}

// get performs the upstream call and returns the body on 2xx, nil otherwise.
func (s *Service) get(ctx context.Context, path string, query map[string]string, coinID string) []byte {
	req := s.client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		logx.Error().Err(err).Str("coin_id", coinID).Str("path", path).Msg("upstream request failed")
		return nil
	}
	if !resp.IsSuccess() {
		logx.Warn().
			Int("status", resp.StatusCode()).
			Str("coin_id", coinID).
			Str("path", path).
			Msg("upstream returned non-success status")
		return nil
	}
	return resp.Body()
}

func priceKey(coinID string) string {
	return fmt.Sprintf("price:%s", coinID)
}

func historicalKey(coinID string, days int) string {
	return fmt.Sprintf("historical:%s:%d", coinID, days)
}
