package turnnode

import (
	"encoding/json"
	"time"

	contractx "github.com/alitalabs/alita/agent/contract"
	windowx "github.com/alitalabs/alita/agent/window"
)

// BuildWindow trims history to the token budget, injecting the serialized
// retrieval context as a pinned system turn when the turn produced one.
func BuildWindow(st *GraphState, budget int) *GraphState {
	userTurn := contractx.Turn{
		Role:      contractx.RoleUser,
		Text:      st.Utterance,
		Timestamp: st.Now,
	}

	st.Window = windowx.Build(st.History, userTurn, ContextTurnFor(st.Context, st.Now), budget, st.Plan.UseMemory)
	return st
}

// ContextTurnFor serializes a retrieval context into the pinned system turn
// injected into the window. It returns nil when the turn retrieved nothing.
func ContextTurnFor(rc contractx.RetrievalContext, ts time.Time) *contractx.Turn {
	if len(rc.Matches) == 0 && len(rc.OrderMatches) == 0 && rc.OrderID == "" {
		return nil
	}

	serialized, err := json.Marshal(rc)
	if err != nil {
		return nil
	}
	return &contractx.Turn{
		Role:      contractx.RoleSystem,
		Text:      "Retrieved context: " + string(serialized),
		Timestamp: ts,
	}
}
