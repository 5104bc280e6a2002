package model

// ================ Config ================

type AnalyzerModelConfig struct {
	Model       string  `envconfig:"ANALYZER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ANALYZER_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"ANALYZER_TEMPERATURE" default:"0.1"`
}

type ReflectionModelConfig struct {
	Model       string  `envconfig:"REFLECTION_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"REFLECTION_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"REFLECTION_TEMPERATURE" default:"0.2"`
}

type FormatterModelConfig struct {
	Model       string  `envconfig:"FORMATTER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"FORMATTER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"FORMATTER_TEMPERATURE" default:"0.5"`
}
