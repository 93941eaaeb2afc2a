package turnnode

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	contractx "github.com/alitalabs/alita/agent/contract"
)

// DispatchTools executes the plan's tool calls in order. An unrecognized
// tool or mode is recovered into an empty outcome with a user-facing note;
// any other dispatch error aborts the turn and is handled at the
// orchestrator boundary.
func DispatchTools(
	ctx context.Context,
	st *GraphState,
	gateway contractx.ToolGateway,
	customer contractx.CustomerContext,
) (*GraphState, error) {
	for _, call := range st.Plan.ToolCalls {
		outcome, err := gateway.Execute(ctx, call, customer)
		if err != nil {
			if errors.Is(err, contractx.ErrUnknownTool) {
				log.Warn().Err(err).Str("tool", string(call.Tool)).Msg("unknown tool in plan")
				st.Outcomes = append(st.Outcomes, contractx.ToolOutcome{
					Call:  call,
					Error: "I couldn't retrieve that.",
				})
				continue
			}
			return nil, err
		}
		st.Outcomes = append(st.Outcomes, outcome)
	}
	return st, nil
}
