package market

// PriceQuote is the per-coin quote block returned by the price endpoint.
// Change and market cap are optional upstream and default to zero.
type PriceQuote struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change,omitempty"`
	USDMarketCap float64 `json:"usd_market_cap,omitempty"`
}

// PricePayload mirrors the upstream price response shape:
// { "<coinID>": { "usd": ..., "usd_24h_change": ..., "usd_market_cap": ... } }
type PricePayload map[string]PriceQuote

// Quote returns the quote for the given coin.
func (p PricePayload) Quote(coinID string) (PriceQuote, bool) {
	q, ok := p[coinID]
	return q, ok
}

// HistoricalPayload mirrors the upstream market-chart response. Each series
// entry is a [timestampMs, value] pair.
type HistoricalPayload struct {
	Prices       [][]float64 `json:"prices"`
	MarketCaps   [][]float64 `json:"market_caps,omitempty"`
	TotalVolumes [][]float64 `json:"total_volumes,omitempty"`
}

// FirstPrice returns the earliest price point value.
func (h *HistoricalPayload) FirstPrice() float64 {
	if len(h.Prices) == 0 || len(h.Prices[0]) < 2 {
		return 0
	}
	return h.Prices[0][1]
}

// LastPrice returns the latest price point value.
func (h *HistoricalPayload) LastPrice() float64 {
	if len(h.Prices) == 0 {
		return 0
	}
	last := h.Prices[len(h.Prices)-1]
	if len(last) < 2 {
		return 0
	}
	return last[1]
}
