// Package parsers converts raw model output into capability result types.
// Models are instructed to answer with a single JSON object, but real output
// often arrives wrapped in code fences or prose, so parsing is defensive.
package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coingraph/server/internal/agent/model"
	errx "github.com/coingraph/server/internal/core/error"
	logx "github.com/coingraph/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxErrSnippet = 200
)

// ParseAnalysis extracts a QueryAnalysis from raw analyzer output.
// The coin identifier is normalized to lowercase; an empty identifier is a
// valid result the caller must handle, not a parse error.
func ParseAnalysis(content string) (out *model.QueryAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "analysis_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("analysis parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	var raw struct {
		CoinID string `json:"coin_id"`
		Kind   string `json:"query_type"`
		Days   *int   `json:"days"`
	}
	if err := decodeObject(content, &raw); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	a := &model.QueryAnalysis{
		CoinID: strings.ToLower(strings.TrimSpace(raw.CoinID)),
		Kind:   model.QueryKindPrice,
	}
	if model.QueryKind(strings.TrimSpace(raw.Kind)) == model.QueryKindHistorical {
		a.Kind = model.QueryKindHistorical
	}
	if raw.Days != nil && *raw.Days > 0 {
		a.Days = *raw.Days
	}
	// historical without a window gets a sane default window
	if a.Kind == model.QueryKindHistorical && a.Days == 0 {
		a.Days = 7
	}
	return a, nil
}

// ParseReflection extracts a Reflection from raw reflector output. An empty
// refined identifier is a valid "decline" result.
func ParseReflection(content string) (out *model.Reflection, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "reflection_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("reflection parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	var raw model.Reflection
	if err := decodeObject(content, &raw); err != nil {
		return nil, fmt.Errorf("reflection: %w", err)
	}
	raw.RefinedCoinID = strings.ToLower(strings.TrimSpace(raw.RefinedCoinID))
	return &raw, nil
}

// decodeObject locates the outermost JSON object in content and unmarshals it.
func decodeObject(content string, target any) error {
	if len(content) > maxContentLen {
		logx.Warn().
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("model output truncated due to size limit")
		content = content[:maxContentLen]
	}

	content = stripFences(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found: %s", safeSnippet(content))
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), target); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
