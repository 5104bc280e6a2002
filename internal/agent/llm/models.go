package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/coingraph/server/internal/agent/model"
	logx "github.com/coingraph/server/pkg/logger"
)

// Config holds everything needed to construct the Gemini-backed capabilities.
type Config struct {
	APIKey  string
	BaseURL string

	Analyzer   model.AnalyzerModelConfig
	Reflection model.ReflectionModelConfig
	Formatter  model.FormatterModelConfig
}

// chatModels bundles the three chat models the provider runs on. Analysis
// and reflection want deterministic structured output; formatting gets a
// warmer model for readable prose.
type chatModels struct {
	analyzer      *gemini.ChatModel
	reflector     *gemini.ChatModel
	formatter     *gemini.ChatModel
	analyzerName  string
	reflectorName string
	formatterName string
}

func newChatModels(ctx context.Context, cfg Config) (*chatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	analyzer, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Analyzer.Model,
		Temperature: &cfg.Analyzer.Temperature,
		MaxTokens:   &cfg.Analyzer.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating analyzer model")
		return nil, fmt.Errorf("error creating analyzer model: %w", err)
	}

	reflector, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Reflection.Model,
		Temperature: &cfg.Reflection.Temperature,
		MaxTokens:   &cfg.Reflection.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating reflection model")
		return nil, fmt.Errorf("error creating reflection model: %w", err)
	}

	formatter, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Formatter.Model,
		Temperature: &cfg.Formatter.Temperature,
		MaxTokens:   &cfg.Formatter.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating formatter model")
		return nil, fmt.Errorf("error creating formatter model: %w", err)
	}

	return &chatModels{
		analyzer:      analyzer,
		reflector:     reflector,
		formatter:     formatter,
		analyzerName:  cfg.Analyzer.Model,
		reflectorName: cfg.Reflection.Model,
		formatterName: cfg.Formatter.Model,
	}, nil
}
