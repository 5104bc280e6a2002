// Package prompts renders the capability prompts from embedded templates.
// Templates contain literal JSON braces, so known tokens are substituted with
// a replacer instead of FString formatting; the result is still pushed
// through the Eino prompt component so prompt callbacks fire.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/coingraph/server/internal/agent/model"
)

//go:embed template/analysis_prompt.txt
var analysisPrompt string

//go:embed template/reflection_prompt.txt
var reflectionPrompt string

//go:embed template/price_summary_prompt.txt
var priceSummaryPrompt string

//go:embed template/historical_summary_prompt.txt
var historicalSummaryPrompt string

// RenderAnalysis renders the query-analysis prompt for the given free text.
func RenderAnalysis(ctx context.Context, query string) (string, error) {
	content := strings.NewReplacer(
		"{query}", query,
	).Replace(analysisPrompt)
	return renderUser(ctx, content)
}

// RenderReflection renders the identifier-refinement prompt for a failed
// fetch attempt.
func RenderReflection(ctx context.Context, in model.ReflectionInput) (string, error) {
	content := strings.NewReplacer(
		"{query}", in.Query,
		"{coin_id}", in.CoinID,
		"{attempt_count}", strconv.Itoa(in.AttemptCount),
		"{previous_attempts}", strings.Join(in.PriorIDs, ", "),
	).Replace(reflectionPrompt)
	return renderUser(ctx, content)
}

// RenderPriceSummary renders the formatter prompt for a current-price result.
// context is the structured data as a JSON string.
func RenderPriceSummary(ctx context.Context, query, context string) (string, error) {
	content := strings.NewReplacer(
		"{query}", query,
		"{context}", context,
	).Replace(priceSummaryPrompt)
	return renderUser(ctx, content)
}

// RenderHistoricalSummary renders the formatter prompt for a historical result.
func RenderHistoricalSummary(ctx context.Context, query, context string) (string, error) {
	content := strings.NewReplacer(
		"{query}", query,
		"{context}", context,
	).Replace(historicalSummaryPrompt)
	return renderUser(ctx, content)
}

// renderUser wraps the content in the Eino prompt component using a messages
// placeholder so prompt callbacks are emitted without re-formatting.
func renderUser(ctx context.Context, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("user_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"user_messages": []*schema.Message{schema.UserMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
