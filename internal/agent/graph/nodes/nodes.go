package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/coingraph/server/internal/agent/graph/prompts"
	"github.com/coingraph/server/internal/agent/model"
	errx "github.com/coingraph/server/internal/core/error"
	logx "github.com/coingraph/server/pkg/logger"
)

// Node names in the coin resolution graph.
const (
	NodeAnalyze = "analyze"
	NodeFetch   = "fetch"
	NodeReflect = "reflect"
	NodeFormat  = "format"
)

// MaxFetchAttempts is the hard ceiling on fetch attempts per run. Not a
// config knob: a fixed bound keeps one bad query from hammering the upstream.
const MaxFetchAttempts = 3

// NewAnalyzePreHandler seeds the run state with the incoming query.
func NewAnalyzePreHandler() func(context.Context, model.QueryInput, *model.WorkflowState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.WorkflowState) (model.QueryInput, error) {
		s.Query = in.Query
		s.RetryCount = 0
		s.AttemptedIDs = nil
		s.CurrentPrice = nil
		s.Historical = nil
		return in, nil
	}
}

// NewAnalyzeNode creates the node that resolves free text into an initial
// coin identifier and query shape. An analyzer that produces no identifier
// fails the run with a client error; nothing downstream can run without a
// candidate.
func NewAnalyzeNode(analyzer model.Analyzer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (model.FetchRequest, error) {
		analysis, err := analyzer.Analyze(ctx, in.Query)
		if err != nil {
			return model.FetchRequest{}, fmt.Errorf("analyze query: %w", err)
		}
		if analysis.CoinID == "" {
			logx.Warn().Str("query", in.Query).Msg("analyzer produced no coin identifier")
			return model.FetchRequest{}, errx.QueryUnresolved()
		}

		logx.Debug().
			Str("coin_id", analysis.CoinID).
			Str("query_type", string(analysis.Kind)).
			Int("days", analysis.Days).
			Msg("query analyzed")

		return model.FetchRequest{
			CoinID: analysis.CoinID,
			Kind:   analysis.Kind,
			Days:   analysis.Days,
		}, nil
	})
}

// NewAnalyzePostHandler records the analysis result in state. Kind and Days
// are set exactly once here; only reflection may change CoinID afterwards.
func NewAnalyzePostHandler() func(context.Context, model.FetchRequest, *model.WorkflowState) (model.FetchRequest, error) {
	return func(ctx context.Context, out model.FetchRequest, s *model.WorkflowState) (model.FetchRequest, error) {
		s.CoinID = out.CoinID
		s.Kind = out.Kind
		s.HistoryDays = out.Days
		s.AttemptedIDs = []string{out.CoinID}
		return out, nil
	}
}

// NewFetchNode creates the node that calls the market-data service. A nil
// payload counts as a failed attempt regardless of cause; a hit stores the
// result and ends the retry loop via the retry condition.
func NewFetchNode(md model.MarketData) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, req model.FetchRequest) (model.FetchRequest, error) {
		logx.Debug().Str("coin_id", req.CoinID).Str("query_type", string(req.Kind)).Msg("fetching market data")

		err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			switch req.Kind {
			case model.QueryKindHistorical:
				if payload := md.Historical(ctx, req.CoinID, req.Days); payload != nil {
					s.Historical = payload
					return nil
				}
			default:
				if payload := md.CurrentPrice(ctx, req.CoinID); payload != nil {
					s.CurrentPrice = payload
					return nil
				}
			}
			s.RetryCount++
			logx.Debug().Str("coin_id", req.CoinID).Int("retry_count", s.RetryCount).Msg("fetch attempt failed")
			return nil
		})
		return req, err
	})
}

// NewRetryCondition decides, after a fetch, whether to reflect on the failed
// identifier or move on to formatting. Pure read of state, no side effects.
func NewRetryCondition() func(context.Context, model.FetchRequest) (string, error) {
	return func(ctx context.Context, _ model.FetchRequest) (string, error) {
		next := NodeFormat
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			if s.RetryCount < MaxFetchAttempts && s.CurrentPrice == nil && s.Historical == nil {
				next = NodeReflect
			}
			return nil
		})
		return next, err
	}
}

// NewReflectNode creates the node that asks the reflector for a refined
// identifier after a failed fetch. When the reflector declares the search
// exhausted, declines to refine, or fails outright, the retry counter is
// forced to the ceiling so the run degrades to the formatted failure message
// instead of crashing.
func NewReflectNode(reflector model.Reflector) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, req model.FetchRequest) (model.FetchRequest, error) {
		var in model.ReflectionInput
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			in = model.ReflectionInput{
				Query:        s.Query,
				CoinID:       s.CoinID,
				AttemptCount: s.RetryCount,
				PriorIDs:     dedupe(s.AttemptedIDs),
			}
			return nil
		}); err != nil {
			return req, err
		}

		reflection, err := reflector.Reflect(ctx, in)
		if err != nil {
			logx.Error().Err(err).Str("coin_id", in.CoinID).Msg("reflection failed, stopping retries")
			return req, forceExhausted(ctx)
		}

		logx.Debug().
			Str("coin_id", in.CoinID).
			Str("refined_coin_id", reflection.RefinedCoinID).
			Bool("sufficient", reflection.Sufficient).
			Str("reasoning", reflection.Reasoning).
			Msg("reflection result")

		if reflection.Sufficient || reflection.RefinedCoinID == "" {
			return req, forceExhausted(ctx)
		}

		next := model.FetchRequest{
			CoinID: reflection.RefinedCoinID,
			Kind:   req.Kind,
			Days:   req.Days,
		}
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			s.CoinID = reflection.RefinedCoinID
			s.AttemptedIDs = append(dedupe(s.AttemptedIDs), reflection.RefinedCoinID)
			return nil
		})
		return next, err
	})
}

// NewReflectCondition routes a reflection that terminated the search to the
// formatter, otherwise back to fetch with the refined identifier.
func NewReflectCondition() func(context.Context, model.FetchRequest) (string, error) {
	return func(ctx context.Context, _ model.FetchRequest) (string, error) {
		next := NodeFetch
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			if s.RetryCount >= MaxFetchAttempts {
				next = NodeFormat
			}
			return nil
		})
		return next, err
	}
}

// NewFormatNode creates the terminal node. With data present it delegates to
// the formatter capability; with none it emits a deterministic local failure
// message so the run always terminates with well-formed output.
func NewFormatNode(formatter model.Formatter) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.FetchRequest) (*model.QueryOutput, error) {
		var snap model.WorkflowState
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
			snap = *s
			return nil
		}); err != nil {
			return nil, err
		}

		switch {
		case snap.CurrentPrice != nil:
			return formatPrice(ctx, formatter, snap)
		case snap.Historical != nil:
			return formatHistorical(ctx, formatter, snap)
		default:
			msg := fmt.Sprintf("Could not fetch data for %s after %d attempts, please try different coin",
				snap.CoinID, snap.RetryCount)
			logx.Warn().Str("coin_id", snap.CoinID).Int("retry_count", snap.RetryCount).Msg("retries exhausted")
			return &model.QueryOutput{Result: msg, Data: map[string]any{}}, nil
		}
	})
}

func formatPrice(ctx context.Context, formatter model.Formatter, s model.WorkflowState) (*model.QueryOutput, error) {
	quote, _ := s.CurrentPrice.Quote(s.CoinID)
	summary, err := json.Marshal(map[string]any{
		"query":      s.Query,
		"coin":       s.CoinID,
		"price":      quote.USD,
		"change_24h": quote.USD24hChange,
		"market_cap": quote.USDMarketCap,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal price context: %w", err)
	}

	prompt, err := prompts.RenderPriceSummary(ctx, s.Query, string(summary))
	if err != nil {
		return nil, err
	}
	result, err := formatter.Format(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("format price response: %w", err)
	}
	return &model.QueryOutput{Result: result, Data: s.CurrentPrice}, nil
}

func formatHistorical(ctx context.Context, formatter model.Formatter, s model.WorkflowState) (*model.QueryOutput, error) {
	summary, err := json.Marshal(map[string]any{
		"query":       s.Query,
		"coin":        s.CoinID,
		"days":        s.HistoryDays,
		"data_points": len(s.Historical.Prices),
		"price_range": map[string]float64{
			"start": s.Historical.FirstPrice(),
			"end":   s.Historical.LastPrice(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal historical context: %w", err)
	}

	prompt, err := prompts.RenderHistoricalSummary(ctx, s.Query, string(summary))
	if err != nil {
		return nil, err
	}
	result, err := formatter.Format(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("format historical response: %w", err)
	}
	return &model.QueryOutput{Result: result, Data: s.Historical}, nil
}

// forceExhausted pushes the retry counter to the ceiling so no further
// fetch/reflect cycle can run.
func forceExhausted(ctx context.Context) error {
	return compose.ProcessState(ctx, func(_ context.Context, s *model.WorkflowState) error {
		s.RetryCount = MaxFetchAttempts
		return nil
	})
}

// dedupe drops empty entries and duplicates while preserving order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
