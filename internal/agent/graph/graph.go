package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/coingraph/server/internal/agent/graph/nodes"
	"github.com/coingraph/server/internal/agent/graph/observers"
	"github.com/coingraph/server/internal/agent/model"
	logx "github.com/coingraph/server/pkg/logger"
)

// Runner executes the compiled coin resolution graph for one query.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.QueryOutput, error)
}

// Config holds the collaborators the graph is composed from. All of them are
// injected so tests can substitute doubles for the external capabilities and
// the market-data service.
type Config struct {
	Analyzer  model.Analyzer
	Reflector model.Reflector
	Formatter model.Formatter
	Market    model.MarketData
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.QueryOutput]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.QueryOutput, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewWorkflowCallbacks()))
}

// Build composes and compiles the resolution graph:
//
//	START → analyze → fetch → {reflect → fetch (loop) | format} → END
//
// Fetch runs 1–3 times, reflect 0–2 times; state carries the attempt history.
func Build(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Analyzer == nil || cfg.Reflector == nil || cfg.Formatter == nil {
		return nil, fmt.Errorf("capabilities are not properly initialized")
	}
	if cfg.Market == nil {
		return nil, fmt.Errorf("market data service is nil")
	}

	g := compose.NewGraph[model.QueryInput, *model.QueryOutput](
		compose.WithGenLocalState(func(ctx context.Context) *model.WorkflowState {
			return &model.WorkflowState{}
		}),
	)

	g.AddLambdaNode(nodes.NodeAnalyze,
		nodes.NewAnalyzeNode(cfg.Analyzer),
		compose.WithStatePreHandler(nodes.NewAnalyzePreHandler()),
		compose.WithStatePostHandler(nodes.NewAnalyzePostHandler()),
	)
	g.AddLambdaNode(nodes.NodeFetch, nodes.NewFetchNode(cfg.Market))
	g.AddLambdaNode(nodes.NodeReflect, nodes.NewReflectNode(cfg.Reflector))
	g.AddLambdaNode(nodes.NodeFormat, nodes.NewFormatNode(cfg.Formatter))

	g.AddEdge(compose.START, nodes.NodeAnalyze)
	g.AddEdge(nodes.NodeAnalyze, nodes.NodeFetch)
	g.AddEdge(nodes.NodeFormat, compose.END)

	retryBranch := compose.NewGraphBranch(
		nodes.NewRetryCondition(),
		map[string]bool{
			nodes.NodeReflect: true,
			nodes.NodeFormat:  true,
		},
	)
	if err := g.AddBranch(nodes.NodeFetch, retryBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding retry branch")
		return nil, fmt.Errorf("error adding retry branch: %w", err)
	}

	reflectBranch := compose.NewGraphBranch(
		nodes.NewReflectCondition(),
		map[string]bool{
			nodes.NodeFetch:  true,
			nodes.NodeFormat: true,
		},
	)
	if err := g.AddBranch(nodes.NodeReflect, reflectBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding reflect branch")
		return nil, fmt.Errorf("error adding reflect branch: %w", err)
	}

	// analyze + format + 3 fetches + 2 reflects is 7 steps; leave headroom
	// for branch evaluations without ever allowing an unbounded loop.
	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(16))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Resolution graph compiled successfully")
	return &graphRunner{runnable: runnable}, nil
}
