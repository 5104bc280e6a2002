package graph_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coingraph/server/internal/agent/graph"
	"github.com/coingraph/server/internal/agent/model"
	"github.com/coingraph/server/internal/market"
)

type fakeAnalyzer struct {
	analysis *model.QueryAnalysis
	err      error
	calls    int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, query string) (*model.QueryAnalysis, error) {
	f.calls++
	return f.analysis, f.err
}

type fakeReflector struct {
	reflections []*model.Reflection
	err         error
	calls       int
	inputs      []model.ReflectionInput
}

func (f *fakeReflector) Reflect(ctx context.Context, in model.ReflectionInput) (*model.Reflection, error) {
	f.inputs = append(f.inputs, in)
	idx := f.calls
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if idx >= len(f.reflections) {
		idx = len(f.reflections) - 1
	}
	return f.reflections[idx], nil
}

type fakeFormatter struct {
	result  string
	calls   int
	prompts []string
}

func (f *fakeFormatter) Format(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.result, nil
}

type fakeMarket struct {
	prices     map[string]*market.PricePayload
	histories  map[string]*market.HistoricalPayload
	attempted  []string
	daysSeen   []int
	fetchCalls int
}

func (f *fakeMarket) CurrentPrice(ctx context.Context, coinID string) *market.PricePayload {
	f.fetchCalls++
	f.attempted = append(f.attempted, coinID)
	return f.prices[coinID]
}

func (f *fakeMarket) Historical(ctx context.Context, coinID string, days int) *market.HistoricalPayload {
	f.fetchCalls++
	f.attempted = append(f.attempted, coinID)
	f.daysSeen = append(f.daysSeen, days)
	return f.histories[coinID]
}

func buildRunner(t *testing.T, a model.Analyzer, r model.Reflector, f model.Formatter, m model.MarketData) graph.Runner {
	t.Helper()
	runner, err := graph.Build(context.Background(), graph.Config{
		Analyzer:  a,
		Reflector: r,
		Formatter: f,
		Market:    m,
	})
	require.NoError(t, err)
	return runner
}

func TestFirstFetchSuccessSkipsReflection(t *testing.T) {
	payload := &market.PricePayload{
		"bitcoin": {USD: 65000, USD24hChange: 1.2, USDMarketCap: 1.2e12},
	}
	analyzer := &fakeAnalyzer{analysis: &model.QueryAnalysis{CoinID: "bitcoin", Kind: model.QueryKindPrice}}
	reflector := &fakeReflector{}
	formatter := &fakeFormatter{result: "Bitcoin is trading at $65,000."}
	md := &fakeMarket{prices: map[string]*market.PricePayload{"bitcoin": payload}}

	runner := buildRunner(t, analyzer, reflector, formatter, md)
	out, err := runner.Invoke(context.Background(), model.QueryInput{Query: "What's the current price of Bitcoin?"})
	require.NoError(t, err)

	assert.Equal(t, "Bitcoin is trading at $65,000.", out.Result)
	assert.Same(t, payload, out.Data)
	assert.Equal(t, 1, analyzer.calls)
	assert.Equal(t, 0, reflector.calls)
	assert.Equal(t, 1, md.fetchCalls)
	assert.Equal(t, []string{"bitcoin"}, md.attempted)
}

func TestUnresolvedQueryFailsBeforeFetch(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: &model.QueryAnalysis{CoinID: "", Kind: model.QueryKindPrice}}
	reflector := &fakeReflector{}
	formatter := &fakeFormatter{result: "unused"}
	md := &fakeMarket{}

	runner := buildRunner(t, analyzer, reflector, formatter, md)
	_, err := runner.Invoke(context.Background(), model.QueryInput{Query: "what's the weather"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "Could not identify cryptocurrency")
	assert.Equal(t, 0, md.fetchCalls)
	assert.Equal(t, 0, reflector.calls)
	assert.Equal(t, 0, formatter.calls)
}

func TestReflectorSufficientShortCircuits(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: &model.QueryAnalysis{CoinID: "notacoin", Kind: model.QueryKindPrice}}
	reflector := &fakeReflector{reflections: []*model.Reflection{
		{RefinedCoinID: "notacoin", Sufficient: true, Reasoning: "no plausible variant"},
	}}
	formatter := &fakeFormatter{result: "unused"}
	md := &fakeMarket{}

	runner := buildRunner(t, analyzer, reflector, formatter, md)
	out, err := runner.Invoke(context.Background(), model.QueryInput{Query: "price of notacoin"})
	require.NoError(t, err)

	assert.Equal(t, 1, md.fetchCalls)
	assert.Equal(t, 1, reflector.calls)
	assert.Equal(t, 0, formatter.calls)
	assert.Contains(t, out.Result, "Could not fetch data for notacoin")
	assert.Equal(t, map[string]any{}, out.Data)
}

func TestRefinedIdentifierSucceeds(t *testing.T) {
	history := &market.HistoricalPayload{
		Prices: [][]float64{{1700000000000, 0.07}, {1700086400000, 0.08}},
	}
	analyzer := &fakeAnalyzer{analysis: &model.QueryAnalysis{CoinID: "doge", Kind: model.QueryKindHistorical, Days: 7}}
	reflector := &fakeReflector{reflections: []*model.Reflection{
		{RefinedCoinID: "dogecoin", Sufficient: false, Reasoning: "ticker to id"},
	}}
	formatter := &fakeFormatter{result: "DOGE went up over the week."}
	md := &fakeMarket{histories: map[string]*market.HistoricalPayload{"dogecoin": history}}

	runner := buildRunner(t, analyzer, reflector, formatter, md)
	out, err := runner.Invoke(context.Background(), model.QueryInput{Query: "Show me DOGE's 7-day history"})
	require.NoError(t, err)

	assert.Equal(t, "DOGE went up over the week.", out.Result)
	assert.Same(t, history, out.Data)
	assert.Equal(t, []string{"doge", "dogecoin"}, md.attempted)
	assert.Equal(t, []int{7, 7}, md.daysSeen)

	require.Len(t, reflector.inputs, 1)
	assert.Equal(t, "doge", reflector.inputs[0].CoinID)
	assert.Equal(t, []string{"doge"}, reflector.inputs[0].PriorIDs)
	assert.Equal(t, 1, reflector.inputs[0].AttemptCount)
}

func TestAttemptCeilingBoundsFetches(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: &model.QueryAnalysis{CoinID: "ghost", Kind: model.QueryKindPrice}}
	reflector := &fakeReflector{reflections: []*model.Reflection{
		{RefinedCoinID: "ghost-coin", Sufficient: false},
		{RefinedCoinID: "ghost-token", Sufficient: false},
		{RefinedCoinID: "ghost-chain", Sufficient: false},
	}}
	formatter := &fakeFormatter{result: "unused"}
	md := &fakeMarket{}

	runner := buildRunner(t, analyzer, reflector, formatter, md)
	out, err := runner.Invoke(context.Background(), model.QueryInput{Query: "price of ghost"})
	require.NoError(t, err)

	assert.Equal(t, 3, md.fetchCalls)
	assert.Equal(t, 2, reflector.calls)
	assert.Equal(t, 0, formatter.calls)
	assert.Equal(t, []string{"ghost", "ghost-coin", "ghost-token"}, md.attempted)
	assert.Contains(t, out.Result, "after 3 attempts")
	assert.Equal(t, map[string]any{}, out.Data)
}

func TestReflectorErrorDegradesGracefully(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: &model.QueryAnalysis{CoinID: "mystery", Kind: model.QueryKindPrice}}
	reflector := &fakeReflector{err: fmt.Errorf("model unavailable")}
	formatter := &fakeFormatter{result: "unused"}
	md := &fakeMarket{}

	runner := buildRunner(t, analyzer, reflector, formatter, md)
	out, err := runner.Invoke(context.Background(), model.QueryInput{Query: "price of mystery"})
	require.NoError(t, err)

	assert.Equal(t, 1, md.fetchCalls)
	assert.Contains(t, out.Result, "Could not fetch data for mystery")
	assert.Equal(t, map[string]any{}, out.Data)
}

func TestReflectorDeclineWithoutRefinementStops(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: &model.QueryAnalysis{CoinID: "mystery", Kind: model.QueryKindPrice}}
	reflector := &fakeReflector{reflections: []*model.Reflection{
		{RefinedCoinID: "", Sufficient: false, Reasoning: "nothing better"},
	}}
	formatter := &fakeFormatter{result: "unused"}
	md := &fakeMarket{}

	runner := buildRunner(t, analyzer, reflector, formatter, md)
	out, err := runner.Invoke(context.Background(), model.QueryInput{Query: "price of mystery"})
	require.NoError(t, err)

	assert.Equal(t, 1, md.fetchCalls)
	assert.Equal(t, 1, reflector.calls)
	assert.Contains(t, out.Result, "please try different coin")
}

func TestBuildRejectsMissingCollaborators(t *testing.T) {
	_, err := graph.Build(context.Background(), graph.Config{})
	assert.Error(t, err)
}
