package intent

import (
	"strings"

	contractx "github.com/alitalabs/alita/agent/contract"
)

// DefaultK is the result count appended tool calls ask for.
const DefaultK = 5

// ExtractOrderID returns the first order identifier in text, uppercased, or
// the empty string.
func ExtractOrderID(text string) string {
	return strings.ToUpper(contractx.OrderIDPattern.FindString(text))
}

func ExtractCustomerID(text string) string {
	return strings.ToUpper(contractx.CustomerIDPattern.FindString(text))
}

func ExtractProductID(text string) string {
	return strings.ToUpper(contractx.ProductIDPattern.FindString(text))
}

var orderKeywords = []string{
	"order",
	"bought",
	"purchased",
	"shipment",
	"delivery",
	"where is my",
}

var policyKeywords = []string{
	"return",
	"refund",
	"exchange",
	"cancel",
	"cancellation",
}

// policyIntents are classifier labels that always require a policy lookup.
var policyIntents = map[string]struct{}{
	"refund_policy":       {},
	"return_policy":       {},
	"shipping_policy":     {},
	"cancellation_policy": {},
}

func needsOrderLookup(text string) bool {
	if text == "" {
		return false
	}
	if contractx.OrderIDPattern.MatchString(text) || contractx.CustomerIDPattern.MatchString(text) {
		return true
	}
	lowered := strings.ToLower(text)
	for _, kw := range orderKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func needsPolicyCheck(intent, text string) bool {
	if _, ok := policyIntents[strings.ToLower(strings.TrimSpace(intent))]; ok {
		return true
	}
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, kw := range policyKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// ApplyCorrections runs the two deterministic post-processing rules on a
// classified plan, in fixed order. Both rules only ever append tool calls;
// existing calls are never removed or reordered, so reapplying the rules is
// a no-op. A redundant lookup is the accepted cost of never skipping an
// order or policy check the model omitted.
func ApplyCorrections(plan *contractx.Plan, utterance string) {
	ensureOrderCall(plan, utterance)
	ensurePolicyCall(plan, utterance)
}

func ensureOrderCall(plan *contractx.Plan, utterance string) {
	if plan == nil || !needsOrderLookup(utterance) {
		return
	}
	for _, call := range plan.ToolCalls {
		if call.Tool == contractx.ToolRetrieve && call.Args.Mode == contractx.ModeOrders {
			return
		}
	}

	query := ExtractOrderID(utterance)
	if query == "" {
		query = ExtractCustomerID(utterance)
	}
	if query == "" {
		query = utterance
	}

	plan.Route = contractx.RouteTools
	plan.ToolCalls = append(plan.ToolCalls, contractx.ToolCall{
		Tool: contractx.ToolRetrieve,
		Args: contractx.ToolArgs{Query: query, Mode: contractx.ModeOrders, K: DefaultK},
	})
}

func ensurePolicyCall(plan *contractx.Plan, utterance string) {
	if plan == nil || !needsPolicyCheck(plan.Intent, utterance) {
		return
	}
	for _, call := range plan.ToolCalls {
		if call.Tool == contractx.ToolRetrieve && call.Args.Mode == contractx.ModePolicy {
			return
		}
	}

	plan.Route = contractx.RouteTools
	plan.ToolCalls = append(plan.ToolCalls, contractx.ToolCall{
		Tool: contractx.ToolRetrieve,
		Args: contractx.ToolArgs{Query: utterance, Mode: contractx.ModePolicy, K: DefaultK},
	})
}
