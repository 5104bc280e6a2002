// Package llm implements the analyzer, reflector and formatter capabilities
// on Gemini chat models.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"

	"github.com/coingraph/server/internal/agent/graph/parsers"
	"github.com/coingraph/server/internal/agent/graph/prompts"
	"github.com/coingraph/server/internal/agent/model"
	logx "github.com/coingraph/server/pkg/logger"
)

// Provider implements model.Analyzer, model.Reflector and model.Formatter.
type Provider struct {
	models *chatModels
}

// NewProvider constructs the Gemini-backed capability provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	cms, err := newChatModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{models: cms}, nil
}

func (p *Provider) Analyze(ctx context.Context, query string) (*model.QueryAnalysis, error) {
	prompt, err := prompts.RenderAnalysis(ctx, query)
	if err != nil {
		return nil, err
	}
	out, err := p.generate(ctx, p.models.analyzer, p.models.analyzerName, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyzer model: %w", err)
	}
	return parsers.ParseAnalysis(out.Content)
}

func (p *Provider) Reflect(ctx context.Context, in model.ReflectionInput) (*model.Reflection, error) {
	prompt, err := prompts.RenderReflection(ctx, in)
	if err != nil {
		return nil, err
	}
	out, err := p.generate(ctx, p.models.reflector, p.models.reflectorName, prompt)
	if err != nil {
		return nil, fmt.Errorf("reflection model: %w", err)
	}
	return parsers.ParseReflection(out.Content)
}

func (p *Provider) Format(ctx context.Context, prompt string) (string, error) {
	out, err := p.generate(ctx, p.models.formatter, p.models.formatterName, prompt)
	if err != nil {
		return "", fmt.Errorf("formatter model: %w", err)
	}
	result := strings.TrimSpace(out.Content)
	if result == "" {
		return "", fmt.Errorf("formatter model returned empty content")
	}
	return result, nil
}

// generate runs one model call and logs its token usage and USD cost.
func (p *Provider) generate(ctx context.Context, cm *gemini.ChatModel, modelName, prompt string) (*schema.Message, error) {
	out, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("model returned nil message")
	}

	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage := out.ResponseMeta.Usage
		inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
		logx.Debug().
			Str("model", modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
	}

	return out, nil
}

var (
	_ model.Analyzer  = (*Provider)(nil)
	_ model.Reflector = (*Provider)(nil)
	_ model.Formatter = (*Provider)(nil)
)
