package turnnode

import (
	"context"
	"strings"

	contractx "github.com/alitalabs/alita/agent/contract"
	intentx "github.com/alitalabs/alita/agent/intent"
	"github.com/alitalabs/alita/agent/resolve"
)

var returnPhrases = []string{
	"return my",
	"return this",
	"return it",
	"return the",
	"return order",
	"want to return",
	"like to return",
	"send back",
	"send it back",
	"initiate a return",
	"start a return",
}

func wantsReturn(text string) bool {
	lowered := strings.ToLower(text)
	for _, p := range returnPhrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

var questionOpeners = []string{
	"can i", "could i", "may i", "am i", "is it", "are there",
	"do i", "does", "would i", "what", "how", "when", "why", "which",
}

// isQuestion separates "can I cancel this?" from "cancel this". Question
// turns go to the model with the retrieved context instead of submitting
// the action.
func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	for _, opener := range questionOpeners {
		if strings.HasPrefix(trimmed, opener+" ") {
			return true
		}
	}
	return false
}

// ResolveContext normalizes tool output into the turn's retrieval context,
// then runs one follow-up dispatch pass: a cancellation or return the
// customer asked for in plain words becomes an action call once the order
// reference has resolved to a single id. The pass runs at most once per
// turn.
func ResolveContext(
	ctx context.Context,
	st *GraphState,
	gateway contractx.ToolGateway,
	customer contractx.CustomerContext,
) (*GraphState, error) {
	st.Context = resolve.Resolve(resolve.Input{
		Utterance: st.Utterance,
		Outcomes:  st.Outcomes,
	})

	if st.Context.Focus != nil {
		st.Focus = st.Context.Focus
	}

	if call, ok := followUpAction(st); ok {
		outcome, err := gateway.Execute(ctx, call, customer)
		if err != nil {
			return nil, err
		}
		st.Outcomes = append(st.Outcomes, outcome)
	}

	st.Warning = returnWarning(st)
	return st, nil
}

// followUpAction decides whether the resolved context completes an action
// the plan did not carry: "cancel my order" with exactly one open order, or
// an explicit return request once both order and product are pinned down.
// Only imperative requests qualify; a question about cancelling or
// returning is answered, not acted on.
func followUpAction(st *GraphState) (contractx.ToolCall, bool) {
	if st.Context.OrderID == "" || hasActionOutcome(st.Outcomes) || isQuestion(st.Utterance) {
		return contractx.ToolCall{}, false
	}

	if resolve.IsCancelRequest(st.Utterance) {
		return contractx.ToolCall{
			Tool: contractx.ToolCancelOrder,
			Args: contractx.ToolArgs{OrderID: st.Context.OrderID},
		}, true
	}

	if wantsReturn(st.Utterance) {
		productID := intentx.ExtractProductID(st.Utterance)
		if productID == "" && st.Focus != nil {
			productID = st.Focus.ProductID
		}
		if productID != "" {
			return contractx.ToolCall{
				Tool: contractx.ToolInitiateReturn,
				Args: contractx.ToolArgs{OrderID: st.Context.OrderID, ProductID: productID},
			}, true
		}
	}

	return contractx.ToolCall{}, false
}

func hasActionOutcome(outcomes []contractx.ToolOutcome) bool {
	for _, o := range outcomes {
		if o.Call.Tool == contractx.ToolCancelOrder || o.Call.Tool == contractx.ToolInitiateReturn {
			return true
		}
	}
	return false
}

// returnWarning flags a return/refund turn when the focused catalog item is
// marked not eligible for return.
func returnWarning(st *GraphState) string {
	lowered := strings.ToLower(st.Utterance)
	if !strings.Contains(lowered, "return") && !strings.Contains(lowered, "refund") {
		return ""
	}
	if st.Focus == nil {
		return ""
	}

	for _, m := range st.Context.CatalogMatches {
		id, _ := m.Payload["product_id"].(string)
		if !strings.EqualFold(id, st.Focus.ProductID) {
			continue
		}
		if eligible, ok := m.Payload["return_eligible"].(bool); ok && !eligible {
			return "Note: the " + st.Focus.ProductName + " is marked as not eligible for return."
		}
	}
	return ""
}
