// Package tool is the guarded dispatcher over the four retrieval domains
// and the two mutative actions. The orders customer filter in this package
// is the single guardrail checkpoint in the system.
package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/alitalabs/alita/agent/contract"
)

const defaultK = 5

// Deps are the collaborators a Gateway dispatches to.
type Deps struct {
	Catalog contractx.Retriever
	FAQ     contractx.Retriever
	Policy  contractx.Retriever
	Orders  contractx.Retriever
	Store   contractx.OrderStore
	Audit   contractx.ActionLogger
}

type Gateway struct {
	catalog contractx.Retriever
	faq     contractx.Retriever
	policy  contractx.Retriever
	orders  contractx.Retriever
	store   contractx.OrderStore
	audit   contractx.ActionLogger

	now       func() time.Time
	newTicket func(prefix string) string
}

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(deps Deps) (*Gateway, error) {
	if deps.Catalog == nil || deps.FAQ == nil || deps.Policy == nil || deps.Orders == nil {
		return nil, fmt.Errorf("%w: all four retrievers are required", contractx.ErrValidation)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: order store is required", contractx.ErrValidation)
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("%w: action logger is required", contractx.ErrValidation)
	}
	return &Gateway{
		catalog:   deps.Catalog,
		faq:       deps.FAQ,
		policy:    deps.Policy,
		orders:    deps.Orders,
		store:     deps.Store,
		audit:     deps.Audit,
		now:       time.Now,
		newTicket: defaultTicket,
	}, nil
}

// Execute dispatches one tool call under the given customer scope.
// Unrecognized tools fail with ErrUnknownTool; everything else resolves to
// an outcome, including denials.
func (g *Gateway) Execute(
	ctx context.Context,
	call contractx.ToolCall,
	customer contractx.CustomerContext,
) (contractx.ToolOutcome, error) {
	if strings.TrimSpace(customer.ID) == "" {
		return contractx.ToolOutcome{}, fmt.Errorf("%w: customer context is required", contractx.ErrValidation)
	}

	switch call.Tool {
	case contractx.ToolRetrieve:
		return g.executeRetrieve(ctx, call, customer)
	case contractx.ToolCancelOrder:
		return g.cancelOrder(ctx, call, customer)
	case contractx.ToolInitiateReturn:
		return g.initiateReturn(ctx, call, customer)
	default:
		return contractx.ToolOutcome{Call: call}, fmt.Errorf("%w: tool=%q", contractx.ErrUnknownTool, call.Tool)
	}
}

func (g *Gateway) executeRetrieve(
	ctx context.Context,
	call contractx.ToolCall,
	customer contractx.CustomerContext,
) (contractx.ToolOutcome, error) {
	k := call.Args.K
	if k <= 0 {
		k = defaultK
	}

	switch call.Args.Mode {
	case contractx.ModeCatalog:
		matches, err := g.catalog.Search(ctx, call.Args.Query, k)
		return contractx.ToolOutcome{Call: call, Matches: matches}, err

	case contractx.ModeFAQ:
		matches, err := g.faq.Search(ctx, call.Args.Query, k)
		return contractx.ToolOutcome{Call: call, Matches: matches}, err

	case contractx.ModePolicy:
		matches, err := g.policy.Search(ctx, call.Args.Query, k)
		return contractx.ToolOutcome{Call: call, Matches: matches}, err

	case contractx.ModeOrders:
		return g.retrieveOrders(ctx, call, customer, k)

	case contractx.ModeCatalogFAQ:
		catalogMatches, err := g.catalog.Search(ctx, call.Args.Query, k)
		if err != nil {
			return contractx.ToolOutcome{Call: call}, err
		}
		faqMatches, err := g.faq.Search(ctx, call.Args.Query, k)
		if err != nil {
			return contractx.ToolOutcome{Call: call}, err
		}
		return contractx.ToolOutcome{Call: call, Matches: append(catalogMatches, faqMatches...)}, nil

	default:
		return contractx.ToolOutcome{Call: call}, fmt.Errorf("%w: mode=%q", contractx.ErrUnknownTool, call.Args.Mode)
	}
}

func (g *Gateway) retrieveOrders(
	ctx context.Context,
	call contractx.ToolCall,
	customer contractx.CustomerContext,
	k int,
) (contractx.ToolOutcome, error) {
	query := resolveGenericOrderQuery(call.Args.Query, customer)

	matches, err := g.orders.Search(ctx, query, k)
	if err != nil {
		return contractx.ToolOutcome{Call: call}, err
	}

	// Guardrail: drop every match that is not this customer's, strictly
	// after ranking so relative order among the customer's own orders is
	// preserved. No caller can opt out of this filter.
	scoped := filterByCustomer(matches, customer.ID)
	if dropped := len(matches) - len(scoped); dropped > 0 {
		log.Debug().
			Str("customer_id", customer.ID).
			Int("dropped", dropped).
			Msg("orders guardrail filtered foreign matches")
	}
	return contractx.ToolOutcome{Call: call, Matches: scoped}, nil
}

var genericOrderPhrases = map[string]struct{}{
	"orders":          {},
	"order":           {},
	"my order":        {},
	"my orders":       {},
	"order history":   {},
	"previous orders": {},
	"it":              {},
}

// resolveGenericOrderQuery rewrites generic order phrases ("my orders") to
// the customer id so the index returns that customer's order set instead of
// keyword noise. Queries carrying an explicit order or customer id pass
// through unchanged.
func resolveGenericOrderQuery(query string, customer contractx.CustomerContext) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return customer.ID
	}
	if _, ok := genericOrderPhrases[normalized]; ok {
		return customer.ID
	}
	if contractx.OrderIDPattern.MatchString(normalized) || contractx.CustomerIDPattern.MatchString(normalized) {
		return query
	}
	if strings.Contains(normalized, "order") {
		return customer.ID
	}
	return query
}

// filterByCustomer keeps only matches whose payload customer_id equals the
// scoped customer, preserving rank order.
func filterByCustomer(matches []contractx.RetrievalMatch, customerID string) []contractx.RetrievalMatch {
	var scoped []contractx.RetrievalMatch
	for _, m := range matches {
		owner, _ := m.Payload["customer_id"].(string)
		if strings.EqualFold(owner, customerID) {
			scoped = append(scoped, m)
		}
	}
	return scoped
}
