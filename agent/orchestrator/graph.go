package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/alitalabs/alita/agent/contract"
	turnnode "github.com/alitalabs/alita/agent/nodes/turn"
)

func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[turnnode.GraphInput, turnnode.GraphOutput], error) {
	graph := compose.NewGraph[turnnode.GraphInput, turnnode.GraphOutput]()

	if err := graph.AddLambdaNode("validate_turn",
		compose.InvokableLambda(func(ctx context.Context, in turnnode.GraphInput) (*turnnode.GraphState, error) {
			return turnnode.ValidateTurn(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_turn: %w", err)
	}

	if err := graph.AddLambdaNode("check_sentinels",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.CheckSentinels(in, o.customer), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node check_sentinels: %w", err)
	}

	if err := graph.AddLambdaNode("classify_intent",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.ClassifyIntent(ctx, in, o.classifier)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify_intent: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_tools",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.DispatchTools(ctx, in, o.tools, o.customer)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_tools: %w", err)
	}

	if err := graph.AddLambdaNode("resolve_context",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.ResolveContext(ctx, in, o.tools, o.customer)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_context: %w", err)
	}

	if err := graph.AddLambdaNode("evaluate_special",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.EvaluateSpecial(in, o.categories), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node evaluate_special: %w", err)
	}

	if err := graph.AddLambdaNode("build_window",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.BuildWindow(in, o.budget), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node build_window: %w", err)
	}

	if err := graph.AddLambdaNode("call_model",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.CallModel(ctx, in, o.responder)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node call_model: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (turnnode.GraphOutput, error) {
			return turnnode.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	sentinelBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnnode.GraphState) (string, error) {
			if in.Canned {
				return "finalize_reply", nil
			}
			return "classify_intent", nil
		},
		map[string]bool{
			"finalize_reply":  true,
			"classify_intent": true,
		},
	)

	dispatchBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnnode.GraphState) (string, error) {
			if in.Plan.Route == contractx.RouteTools && len(in.Plan.ToolCalls) > 0 {
				return "dispatch_tools", nil
			}
			return "resolve_context", nil
		},
		map[string]bool{
			"dispatch_tools":  true,
			"resolve_context": true,
		},
	)

	specialBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnnode.GraphState) (string, error) {
			if in.Canned {
				return "finalize_reply", nil
			}
			return "build_window", nil
		},
		map[string]bool{
			"finalize_reply": true,
			"build_window":   true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_turn"); err != nil {
		return nil, fmt.Errorf("add edge start->validate: %w", err)
	}
	if err := graph.AddEdge("validate_turn", "check_sentinels"); err != nil {
		return nil, fmt.Errorf("add edge validate->sentinels: %w", err)
	}
	if err := graph.AddBranch("check_sentinels", sentinelBranch); err != nil {
		return nil, fmt.Errorf("add sentinel branch: %w", err)
	}
	if err := graph.AddBranch("classify_intent", dispatchBranch); err != nil {
		return nil, fmt.Errorf("add dispatch branch: %w", err)
	}
	if err := graph.AddEdge("dispatch_tools", "resolve_context"); err != nil {
		return nil, fmt.Errorf("add edge dispatch->resolve: %w", err)
	}
	if err := graph.AddEdge("resolve_context", "evaluate_special"); err != nil {
		return nil, fmt.Errorf("add edge resolve->special: %w", err)
	}
	if err := graph.AddBranch("evaluate_special", specialBranch); err != nil {
		return nil, fmt.Errorf("add special branch: %w", err)
	}
	if err := graph.AddEdge("build_window", "call_model"); err != nil {
		return nil, fmt.Errorf("add edge window->model: %w", err)
	}
	if err := graph.AddEdge("call_model", "finalize_reply"); err != nil {
		return nil, fmt.Errorf("add edge model->finalize: %w", err)
	}
	if err := graph.AddEdge("finalize_reply", compose.END); err != nil {
		return nil, fmt.Errorf("add edge finalize->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.turn_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
