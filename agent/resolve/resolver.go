// Package resolve turns raw tool output into a normalized retrieval context
// and evaluates the canned-response decision table. All disambiguation of
// order references happens here, in one place.
package resolve

import (
	"fmt"
	"strings"

	contractx "github.com/alitalabs/alita/agent/contract"
	intentx "github.com/alitalabs/alita/agent/intent"
)

const snippetLimit = 200

// Input carries one turn's utterance and the per-call dispatch results, in
// plan order.
type Input struct {
	Utterance string
	Outcomes  []contractx.ToolOutcome
}

// Resolve builds the turn's RetrievalContext. The algorithm is
// deterministic:
//  1. the first retrieve call's query is the resolved query, whatever mode
//     it targeted;
//  2. a generic order reference with exactly one candidate resolves to that
//     candidate's id; several candidates mark the context ambiguous; zero
//     leave both unset;
//  3. an explicit order identifier in the query text overrides step 2;
//  4. payloads are shaped to the fields response generation needs.
func Resolve(in Input) contractx.RetrievalContext {
	rc := contractx.RetrievalContext{}

	for _, outcome := range in.Outcomes {
		if outcome.Call.Tool != contractx.ToolRetrieve {
			continue
		}
		if rc.ResolvedQuery == "" && outcome.Call.Args.Query != "" {
			rc.ResolvedQuery = outcome.Call.Args.Query
		}
		switch outcome.Call.Args.Mode {
		case contractx.ModeOrders:
			if rc.OrderQuery == "" {
				rc.OrderQuery = outcome.Call.Args.Query
			}
			rc.OrderMatches = append(rc.OrderMatches, shapeMatches(outcome.Matches)...)
		case contractx.ModeCatalog, contractx.ModeCatalogFAQ:
			if rc.CatalogQuery == "" {
				rc.CatalogQuery = outcome.Call.Args.Query
			}
			rc.CatalogMatches = append(rc.CatalogMatches, shapeCatalogOnly(outcome.Matches)...)
			rc.Matches = append(rc.Matches, shapeMatches(outcome.Matches)...)
			continue
		}
		rc.Matches = append(rc.Matches, shapeMatches(outcome.Matches)...)
	}

	resolveOrderReference(&rc, in.Utterance)
	resolveCatalogFocus(&rc, in.Utterance)
	return rc
}

func resolveOrderReference(rc *contractx.RetrievalContext, utterance string) {
	generic := rc.OrderQuery != "" && intentx.ExtractOrderID(rc.OrderQuery) == ""
	if generic {
		switch len(rc.OrderMatches) {
		case 0:
			// leave both unset
		case 1:
			if id, ok := rc.OrderMatches[0].Payload["order_id"].(string); ok {
				rc.OrderID = id
			}
		default:
			rc.Ambiguous = true
		}
	}

	// An explicit identifier in the query or the utterance always wins.
	explicit := intentx.ExtractOrderID(rc.OrderQuery)
	if explicit == "" {
		explicit = intentx.ExtractOrderID(utterance)
	}
	if explicit != "" {
		rc.OrderID = explicit
		rc.Ambiguous = false
	}
}

// resolveCatalogFocus marks ambiguity across distinct product names and
// picks the focused product when the match set or the utterance pins one
// down.
func resolveCatalogFocus(rc *contractx.RetrievalContext, utterance string) {
	if len(rc.CatalogMatches) == 0 {
		return
	}

	lowered := strings.ToLower(utterance)

	if len(rc.CatalogMatches) == 1 {
		rc.Focus = focusFrom(rc.CatalogMatches[0])
		return
	}

	var names []string
	for _, m := range rc.CatalogMatches {
		name, _ := m.Payload["product_name"].(string)
		if name != "" && !containsFold(names, name) {
			names = append(names, name)
		}
	}
	if len(names) <= 1 {
		rc.Focus = focusFrom(rc.CatalogMatches[0])
		return
	}

	for _, m := range rc.CatalogMatches {
		name, _ := m.Payload["product_name"].(string)
		if name != "" && strings.Contains(lowered, strings.ToLower(name)) {
			rc.Focus = focusFrom(m)
			return
		}
	}
	rc.CatalogAmbiguous = true
}

func focusFrom(m contractx.RetrievalMatch) *contractx.ProductFocus {
	id, _ := m.Payload["product_id"].(string)
	name, _ := m.Payload["product_name"].(string)
	if id == "" && name == "" {
		return nil
	}
	return &contractx.ProductFocus{ProductID: id, ProductName: name}
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// shapeMatches truncates payloads to the fields response generation needs.
// Internal index fields never cross this boundary.
func shapeMatches(matches []contractx.RetrievalMatch) []contractx.RetrievalMatch {
	shaped := make([]contractx.RetrievalMatch, 0, len(matches))
	for _, m := range matches {
		shaped = append(shaped, contractx.RetrievalMatch{
			DocumentID: m.DocumentID,
			Score:      m.Score,
			Payload:    shapePayload(m.Payload),
		})
	}
	return shaped
}

func shapeCatalogOnly(matches []contractx.RetrievalMatch) []contractx.RetrievalMatch {
	var shaped []contractx.RetrievalMatch
	for _, m := range matches {
		if domain, _ := m.Payload["domain"].(string); domain != "catalog" {
			continue
		}
		shaped = append(shaped, contractx.RetrievalMatch{
			DocumentID: m.DocumentID,
			Score:      m.Score,
			Payload:    shapePayload(m.Payload),
		})
	}
	return shaped
}

func shapePayload(payload map[string]any) map[string]any {
	domain, _ := payload["domain"].(string)
	shaped := map[string]any{}

	switch domain {
	case "catalog":
		copyFields(shaped, payload, "product_id", "product_name", "category", "price", "rating", "return_eligible")
		if desc, _ := payload["description"].(string); desc != "" {
			shaped["description"] = snippet(desc)
		}
	case "faq":
		copyFields(shaped, payload, "product_id", "product_name", "question")
		if answer, _ := payload["answer"].(string); answer != "" {
			shaped["answer"] = snippet(answer)
		}
	case "policy":
		copyFields(shaped, payload, "section")
		if text, _ := payload["text"].(string); text != "" {
			shaped["text"] = snippet(text)
		}
	case "orders":
		copyFields(shaped, payload, "order_id", "customer_id", "order_status", "order_date", "products")
	default:
		copyFields(shaped, payload, "title", "text")
	}
	return shaped
}

func copyFields(dst, src map[string]any, keys ...string) {
	for _, key := range keys {
		if v, ok := src[key]; ok {
			dst[key] = v
		}
	}
}

func snippet(text string) string {
	if len(text) <= snippetLimit {
		return text
	}
	return fmt.Sprintf("%s...", strings.TrimSpace(text[:snippetLimit]))
}
