package model

import (
	"github.com/coingraph/server/internal/market"
)

// QueryKind distinguishes current-price queries from historical ones.
type QueryKind string

const (
	QueryKindPrice      QueryKind = "price"
	QueryKindHistorical QueryKind = "historical"
)

// WorkflowState stores per-run state for the coin resolution graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//
// Invariants maintained by the nodes:
//   - RetryCount never decreases; reflection may force it to the attempt
//     ceiling to short-circuit further fetches.
//   - AttemptedIDs is append-only and holds no empty entries.
//   - At most one of CurrentPrice / Historical is ever populated.
type WorkflowState struct {
	Query       string
	CoinID      string
	Kind        QueryKind
	HistoryDays int

	CurrentPrice *market.PricePayload
	Historical   *market.HistoricalPayload

	AttemptedIDs []string
	RetryCount   int
}

// QueryInput is the public input of one workflow run.
type QueryInput struct {
	Query string `json:"query"`
}

// QueryOutput is the public result of one workflow run. Data carries the raw
// upstream payload, or an empty object when all attempts were exhausted.
type QueryOutput struct {
	Result string `json:"result"`
	Data   any    `json:"data"`
}

// FetchRequest is the payload passed between graph nodes: the identifier to
// try next plus the (immutable after analysis) query shape.
type FetchRequest struct {
	CoinID string
	Kind   QueryKind
	Days   int
}

// QueryAnalysis is the analyzer capability output.
type QueryAnalysis struct {
	CoinID string    `json:"coin_id"`
	Kind   QueryKind `json:"query_type"`
	Days   int       `json:"days"`
}

// Reflection is the reflector capability output for a failed identifier.
// Sufficient means stop trying; Reasoning is logged, never shown to users.
type Reflection struct {
	RefinedCoinID string `json:"refined_coin_id"`
	Sufficient    bool   `json:"sufficient"`
	Reasoning     string `json:"reasoning"`
}
