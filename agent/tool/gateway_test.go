package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/alitalabs/alita/agent/contract"
)

type fakeRetriever struct {
	matches []contractx.RetrievalMatch
	err     error
	queries []string
}

func (f *fakeRetriever) Search(_ context.Context, query string, k int) ([]contractx.RetrievalMatch, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeOrderStore struct {
	orders map[string]contractx.OrderRecord
}

func (f *fakeOrderStore) FindOrder(_ context.Context, orderID string) (*contractx.OrderRecord, error) {
	order, ok := f.orders[strings.ToUpper(orderID)]
	if !ok {
		return nil, contractx.ErrOrderNotFound
	}
	return &order, nil
}

type fakeAudit struct {
	entries []contractx.ActionLogEntry
	err     error
}

func (f *fakeAudit) Append(entry contractx.ActionLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func orderMatch(orderID, customerID string) contractx.RetrievalMatch {
	return contractx.RetrievalMatch{
		DocumentID: orderID,
		Score:      1,
		Payload: map[string]any{
			"domain":      "orders",
			"order_id":    orderID,
			"customer_id": customerID,
		},
	}
}

func newTestGateway(t *testing.T, deps Deps) *Gateway {
	t.Helper()
	if deps.Catalog == nil {
		deps.Catalog = &fakeRetriever{}
	}
	if deps.FAQ == nil {
		deps.FAQ = &fakeRetriever{}
	}
	if deps.Policy == nil {
		deps.Policy = &fakeRetriever{}
	}
	if deps.Orders == nil {
		deps.Orders = &fakeRetriever{}
	}
	if deps.Store == nil {
		deps.Store = &fakeOrderStore{}
	}
	if deps.Audit == nil {
		deps.Audit = &fakeAudit{}
	}

	g, err := NewGateway(deps)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	g.now = func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC) }
	g.newTicket = func(prefix string) string { return prefix + "-test" }
	return g
}

func retrieveCall(query string, mode contractx.RetrieveMode) contractx.ToolCall {
	return contractx.ToolCall{
		Tool: contractx.ToolRetrieve,
		Args: contractx.ToolArgs{Query: query, Mode: mode, K: 5},
	}
}

func TestOrdersGuardrailFiltersForeignMatches(t *testing.T) {
	t.Parallel()

	orders := &fakeRetriever{matches: []contractx.RetrievalMatch{
		orderMatch("O0003", "C0054"),
		orderMatch("O0002", "C0029"),
		orderMatch("O0004", "C0029"),
		orderMatch("O0001", "C0017"),
	}}
	g := newTestGateway(t, Deps{Orders: orders})

	customers := []string{"C0029", "C0017", "C0054", "C9999"}
	for _, id := range customers {
		out, err := g.Execute(context.Background(), retrieveCall("orders", contractx.ModeOrders), contractx.CustomerContext{ID: id})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		for _, m := range out.Matches {
			owner, _ := m.Payload["customer_id"].(string)
			if owner != id {
				t.Fatalf("guardrail breach: customer %s received order of %s", id, owner)
			}
		}
	}
}

func TestOrdersGuardrailPreservesRankOrder(t *testing.T) {
	t.Parallel()

	orders := &fakeRetriever{matches: []contractx.RetrievalMatch{
		orderMatch("O0002", "C0029"),
		orderMatch("O0003", "C0054"),
		orderMatch("O0004", "C0029"),
	}}
	g := newTestGateway(t, Deps{Orders: orders})

	out, err := g.Execute(context.Background(), retrieveCall("orders", contractx.ModeOrders), contractx.CustomerContext{ID: "C0029"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out.Matches) != 2 {
		t.Fatalf("expected 2 scoped matches, got %d", len(out.Matches))
	}
	if out.Matches[0].DocumentID != "O0002" || out.Matches[1].DocumentID != "O0004" {
		t.Fatalf("rank order not preserved: %#v", out.Matches)
	}
}

func TestCrossCustomerOrderQueryReturnsNothing(t *testing.T) {
	t.Parallel()

	// O0003 belongs to C0054; C0029 asks for it by id.
	orders := &fakeRetriever{matches: []contractx.RetrievalMatch{
		orderMatch("O0003", "C0054"),
	}}
	g := newTestGateway(t, Deps{Orders: orders})

	out, err := g.Execute(context.Background(), retrieveCall("O0003", contractx.ModeOrders), contractx.CustomerContext{ID: "C0029"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out.Matches) != 0 {
		t.Fatalf("expected zero matches for foreign order, got %d", len(out.Matches))
	}
}

func TestGenericOrderQueryRewrittenToCustomerID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query string
		want  string
	}{
		{"my orders", "C0029"},
		{"", "C0029"},
		{"where is my order", "C0029"},
		{"O0002", "O0002"},
		{"C0029", "C0029"},
		{"headphones", "headphones"},
	}

	for _, tc := range cases {
		orders := &fakeRetriever{}
		g := newTestGateway(t, Deps{Orders: orders})

		_, err := g.Execute(context.Background(), retrieveCall(tc.query, contractx.ModeOrders), contractx.CustomerContext{ID: "C0029"})
		if err != nil {
			t.Fatalf("Execute(%q) error = %v", tc.query, err)
		}
		if len(orders.queries) != 1 || orders.queries[0] != tc.want {
			t.Fatalf("query %q sent as %#v, want %q", tc.query, orders.queries, tc.want)
		}
	}
}

func TestCatalogFAQModeQueriesBoth(t *testing.T) {
	t.Parallel()

	catalog := &fakeRetriever{matches: []contractx.RetrievalMatch{{DocumentID: "P0101", Payload: map[string]any{"domain": "catalog"}}}}
	faq := &fakeRetriever{matches: []contractx.RetrievalMatch{{DocumentID: "P0101#0", Payload: map[string]any{"domain": "faq"}}}}
	g := newTestGateway(t, Deps{Catalog: catalog, FAQ: faq})

	out, err := g.Execute(context.Background(), retrieveCall("headphones", contractx.ModeCatalogFAQ), contractx.CustomerContext{ID: "C0029"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out.Matches) != 2 {
		t.Fatalf("expected merged matches, got %d", len(out.Matches))
	}
	if len(catalog.queries) != 1 || len(faq.queries) != 1 {
		t.Fatal("expected both indexes queried")
	}
}

func TestUnknownToolAndMode(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, Deps{})

	_, err := g.Execute(context.Background(), contractx.ToolCall{Tool: "teleport"}, contractx.CustomerContext{ID: "C0029"})
	if !errors.Is(err, contractx.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}

	_, err = g.Execute(context.Background(), retrieveCall("q", "warehouse"), contractx.CustomerContext{ID: "C0029"})
	if !errors.Is(err, contractx.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool for bad mode, got %v", err)
	}
}

func TestCancelOrderEligibility(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{orders: map[string]contractx.OrderRecord{
		"O0002": {OrderID: "O0002", CustomerID: "C0029", Status: "Shipped"},
		"O0004": {OrderID: "O0004", CustomerID: "C0029", Status: "Delivered"},
	}}

	cases := []struct {
		orderID string
		want    string
	}{
		{"O0002", contractx.ResultApproved},
		{"O0004", contractx.ResultRejected},
		{"O9999", contractx.ResultRejected},
	}

	for _, tc := range cases {
		audit := &fakeAudit{}
		g := newTestGateway(t, Deps{Store: store, Audit: audit})

		out, err := g.Execute(context.Background(), contractx.ToolCall{
			Tool: contractx.ToolCancelOrder,
			Args: contractx.ToolArgs{OrderID: tc.orderID},
		}, contractx.CustomerContext{ID: "C0029"})
		if err != nil {
			t.Fatalf("Execute(%s) error = %v", tc.orderID, err)
		}
		if out.Action == nil || out.Action.Status != tc.want {
			t.Fatalf("cancel %s: got %#v, want status %s", tc.orderID, out.Action, tc.want)
		}
		if tc.want == contractx.ResultApproved && out.Action.TicketID == "" {
			t.Fatalf("approved cancel must carry a ticket: %#v", out.Action)
		}
		if len(audit.entries) != 1 {
			t.Fatalf("expected one audit entry, got %d", len(audit.entries))
		}
		if audit.entries[0].Result != tc.want {
			t.Fatalf("audit result %s, want %s", audit.entries[0].Result, tc.want)
		}
	}
}

func TestCancelForeignOrderDenied(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{orders: map[string]contractx.OrderRecord{
		"O0003": {OrderID: "O0003", CustomerID: "C0054", Status: "Placed"},
	}}
	audit := &fakeAudit{}
	g := newTestGateway(t, Deps{Store: store, Audit: audit})

	out, err := g.Execute(context.Background(), contractx.ToolCall{
		Tool: contractx.ToolCancelOrder,
		Args: contractx.ToolArgs{OrderID: "O0003"},
	}, contractx.CustomerContext{ID: "C0029"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Action == nil || out.Action.Status != contractx.ResultDenied {
		t.Fatalf("expected Denied, got %#v", out.Action)
	}
	if strings.Contains(out.Action.Message, "C0054") {
		t.Fatalf("denial must not leak the owner: %q", out.Action.Message)
	}
	if len(audit.entries) != 1 || audit.entries[0].Result != contractx.ResultDenied {
		t.Fatalf("expected denied audit entry, got %#v", audit.entries)
	}
}

func TestInitiateReturnRules(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{orders: map[string]contractx.OrderRecord{
		"O0004": {
			OrderID: "O0004", CustomerID: "C0029", Status: "Delivered",
			Products: []contractx.OrderProduct{{ProductID: "P0401", ProductName: "PageTurner E-Reader"}},
		},
		"O0002": {OrderID: "O0002", CustomerID: "C0029", Status: "Shipped"},
	}}

	cases := []struct {
		name      string
		orderID   string
		productID string
		want      string
	}{
		{"delivered with product", "O0004", "P0401", contractx.ResultApproved},
		{"product not in order", "O0004", "P0101", contractx.ResultRejected},
		{"not delivered", "O0002", "P0101", contractx.ResultRejected},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := newTestGateway(t, Deps{Store: store})

			out, err := g.Execute(context.Background(), contractx.ToolCall{
				Tool: contractx.ToolInitiateReturn,
				Args: contractx.ToolArgs{OrderID: tc.orderID, ProductID: tc.productID},
			}, contractx.CustomerContext{ID: "C0029"})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if out.Action == nil || out.Action.Status != tc.want {
				t.Fatalf("got %#v, want status %s", out.Action, tc.want)
			}
		})
	}
}

func TestAuditFailureFailsActionOnly(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{orders: map[string]contractx.OrderRecord{
		"O0002": {OrderID: "O0002", CustomerID: "C0029", Status: "Placed"},
	}}
	g := newTestGateway(t, Deps{Store: store, Audit: &fakeAudit{err: errors.New("disk full")}})

	out, err := g.Execute(context.Background(), contractx.ToolCall{
		Tool: contractx.ToolCancelOrder,
		Args: contractx.ToolArgs{OrderID: "O0002"},
	}, contractx.CustomerContext{ID: "C0029"})
	if err != nil {
		t.Fatalf("audit failure must not abort the turn: %v", err)
	}
	if out.Action != nil {
		t.Fatalf("unconfirmed action must not report success: %#v", out.Action)
	}
	if out.Error == "" {
		t.Fatal("expected a user-facing failure message")
	}
}

func TestExecuteRequiresCustomerContext(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, Deps{})

	_, err := g.Execute(context.Background(), retrieveCall("q", contractx.ModeCatalog), contractx.CustomerContext{})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
