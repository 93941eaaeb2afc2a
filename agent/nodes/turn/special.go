package turnnode

import (
	"fmt"

	contractx "github.com/alitalabs/alita/agent/contract"
	"github.com/alitalabs/alita/agent/resolve"
)

// EvaluateSpecial runs the canned-response decision table. An executed
// action always short-circuits: its confirmation or denial is reported
// verbatim rather than paraphrased by the model. Otherwise the resolver's
// table decides.
func EvaluateSpecial(st *GraphState, categories []string) *GraphState {
	if reply, ok := actionReply(st.Outcomes); ok {
		st.Reply = reply
		st.Canned = true
		return st
	}

	if reply, ok := failedRetrieveReply(st.Outcomes); ok {
		st.Reply = reply
		st.Canned = true
		return st
	}

	st.Decision = resolve.Evaluate(st.Utterance, st.Context, st.Outcomes, categories)
	if st.Decision.ShortCircuit {
		st.Reply = st.Decision.Reply
		st.Canned = true
	}
	return st
}

func actionReply(outcomes []contractx.ToolOutcome) (string, bool) {
	for _, o := range outcomes {
		if o.Call.Tool != contractx.ToolCancelOrder && o.Call.Tool != contractx.ToolInitiateReturn {
			continue
		}
		if o.Error != "" {
			return o.Error, true
		}
		if o.Action == nil {
			continue
		}
		if o.Action.Status == contractx.ResultApproved && o.Action.TicketID != "" {
			return fmt.Sprintf("%s Your ticket is %s.", o.Action.Message, o.Action.TicketID), true
		}
		return o.Action.Message, true
	}
	return "", false
}

// failedRetrieveReply surfaces a retrieval failure note, but only when no
// retrieve call produced matches. A partial failure next to usable results
// does not block the turn.
func failedRetrieveReply(outcomes []contractx.ToolOutcome) (string, bool) {
	failed := ""
	for _, o := range outcomes {
		if o.Call.Tool != contractx.ToolRetrieve {
			continue
		}
		if len(o.Matches) > 0 {
			return "", false
		}
		if o.Error != "" {
			failed = o.Error
		}
	}
	return failed, failed != ""
}
