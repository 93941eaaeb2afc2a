package resolve

import (
	"fmt"
	"strings"

	contractx "github.com/alitalabs/alita/agent/contract"
)

// Decision is the outcome of the special-case table. When ShortCircuit is
// set the reply is emitted as-is and the language model is not called.
type Decision struct {
	ShortCircuit bool
	Reply        string
}

// IsCancelRequest reports whether the utterance asks for an order
// cancellation.
func IsCancelRequest(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "cancel") && strings.Contains(lowered, "order")
}

// Evaluate runs the decision table over the resolved context. Branches are
// mutually exclusive and checked in priority order; at most one fires per
// turn:
//  1. cancellation without a resolvable order id;
//  2. ambiguous order reference;
//  3. requested retrieval came back empty;
//  4. ambiguous catalog matches.
func Evaluate(
	utterance string,
	rc contractx.RetrievalContext,
	outcomes []contractx.ToolOutcome,
	categories []string,
) Decision {
	if IsCancelRequest(utterance) && rc.OrderID == "" && !rc.Ambiguous {
		return Decision{
			ShortCircuit: true,
			Reply:        "I can help with that. Please share the order ID you want to cancel (for example O0123).",
		}
	}

	if rc.Ambiguous {
		return Decision{ShortCircuit: true, Reply: ambiguousOrdersReply(utterance, rc.OrderMatches)}
	}

	if reply, ok := emptyRetrievalReply(utterance, rc, outcomes, categories); ok {
		return Decision{ShortCircuit: true, Reply: reply}
	}

	if rc.CatalogAmbiguous {
		return Decision{ShortCircuit: true, Reply: ambiguousCatalogReply(rc.CatalogMatches)}
	}

	return Decision{}
}

func ambiguousOrdersReply(utterance string, matches []contractx.RetrievalMatch) string {
	choices := matches
	if IsCancelRequest(utterance) {
		// Prefer orders that can still be cancelled.
		var active []contractx.RetrievalMatch
		for _, m := range matches {
			status, _ := m.Payload["order_status"].(string)
			if status != "Cancelled" && status != "Returned" {
				active = append(active, m)
			}
		}
		if len(active) > 0 {
			choices = active
		}
	}
	if len(choices) > 5 {
		choices = choices[:5]
	}

	options := make([]string, 0, len(choices))
	for _, m := range choices {
		id, _ := m.Payload["order_id"].(string)
		if id == "" {
			id = "Unknown"
		}
		var details []string
		if status, _ := m.Payload["order_status"].(string); status != "" {
			details = append(details, status)
		}
		if date, _ := m.Payload["order_date"].(string); date != "" {
			details = append(details, date)
		}
		if len(details) > 0 {
			id = fmt.Sprintf("%s (%s)", id, strings.Join(details, ", "))
		}
		options = append(options, id)
	}

	return fmt.Sprintf("I found %d orders. Which one do you mean? %s.",
		len(choices), strings.Join(options, "; "))
}

func emptyRetrievalReply(
	utterance string,
	rc contractx.RetrievalContext,
	outcomes []contractx.ToolOutcome,
	categories []string,
) (string, bool) {
	if rc.CatalogQuery != "" && len(rc.CatalogMatches) == 0 {
		if len(categories) > 0 {
			return fmt.Sprintf("I couldn't find a matching product. Are you looking for %s?",
				strings.Join(categories, ", ")), true
		}
		return "I couldn't find a matching product. Could you clarify the product name or category?", true
	}

	if rc.OrderQuery != "" && len(rc.OrderMatches) == 0 {
		if rc.OrderID != "" {
			return "I couldn't find that order ID. Please double-check the digits.", true
		}
		return "I couldn't find an order. Could you share the order ID?", true
	}

	for _, outcome := range outcomes {
		if outcome.Call.Tool != contractx.ToolRetrieve || len(outcome.Matches) > 0 {
			continue
		}
		switch outcome.Call.Args.Mode {
		case contractx.ModeFAQ:
			return "I couldn't find anything on that in the product FAQs.", true
		case contractx.ModePolicy:
			return "I couldn't find anything on that in the company policy.", true
		}
	}
	return "", false
}

func ambiguousCatalogReply(matches []contractx.RetrievalMatch) string {
	top := matches
	if len(top) > 3 {
		top = top[:3]
	}

	options := make([]string, 0, len(top))
	for _, m := range top {
		name, _ := m.Payload["product_name"].(string)
		if name == "" {
			name = "Unknown"
		}
		var bits []string
		if price, ok := m.Payload["price"].(float64); ok && price > 0 {
			bits = append(bits, fmt.Sprintf("$%g", price))
		}
		if rating, ok := m.Payload["rating"].(float64); ok && rating > 0 {
			bits = append(bits, fmt.Sprintf("%g★", rating))
		}
		if len(bits) > 0 {
			name = fmt.Sprintf("%s (%s)", name, strings.Join(bits, ", "))
		}
		options = append(options, name)
	}

	return fmt.Sprintf("I found a few options. Here are some top matches: %s. Which one should I compare or describe?",
		strings.Join(options, "; "))
}
