// Package observers provides run-scoped Eino callbacks that trace every
// graph component invocation (nodes, prompt renders, model calls).
package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"

	logx "github.com/coingraph/server/pkg/logger"
)

// NewWorkflowCallbacks builds the handler attached to every graph run.
func NewWorkflowCallbacks() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, input einocb.CallbackInput) context.Context {
			if info != nil {
				logx.Debug().
					Str("component", string(info.Component)).
					Str("name", info.Name).
					Msg("workflow step start")
			}
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, output einocb.CallbackOutput) context.Context {
			if info != nil {
				logx.Debug().
					Str("component", string(info.Component)).
					Str("name", info.Name).
					Msg("workflow step end")
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			if info != nil {
				logx.Error().
					Err(err).
					Str("component", string(info.Component)).
					Str("name", info.Name).
					Msg("workflow step failed")
			}
			return ctx
		}).
		Build()
}
