package model

import (
	"context"

	"github.com/coingraph/server/internal/market"
)

// Analyzer maps free text to a coin identifier and query shape. An empty
// CoinID means the query could not be resolved.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (*QueryAnalysis, error)
}

// ReflectionInput carries everything the reflector needs to refine a failing
// identifier without repeating earlier attempts.
type ReflectionInput struct {
	Query        string
	CoinID       string
	AttemptCount int
	PriorIDs     []string
}

// Reflector suggests a refined identifier after a failed fetch, or declares
// the search exhausted.
type Reflector interface {
	Reflect(ctx context.Context, in ReflectionInput) (*Reflection, error)
}

// Formatter turns a prompt containing the query plus structured context into
// a natural-language answer.
type Formatter interface {
	Format(ctx context.Context, prompt string) (string, error)
}

// MarketData is the fetch surface the workflow depends on. A nil payload
// means no data, whatever the upstream cause.
type MarketData interface {
	CurrentPrice(ctx context.Context, coinID string) *market.PricePayload
	Historical(ctx context.Context, coinID string, days int) *market.HistoricalPayload
}
