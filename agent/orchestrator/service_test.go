package orchestrator

import (
	"context"
	"strings"
	"testing"

	contractx "github.com/alitalabs/alita/agent/contract"
)

type fakeClassifier struct {
	plan  contractx.Plan
	err   error
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, utterance string) (contractx.Plan, error) {
	f.calls++
	if f.err != nil {
		return contractx.Plan{}, f.err
	}
	return f.plan, nil
}

type fakeResponder struct {
	reply   string
	err     error
	calls   int
	windows [][]contractx.Turn
}

func (f *fakeResponder) Respond(ctx context.Context, window []contractx.Turn) (string, error) {
	f.calls++
	f.windows = append(f.windows, append([]contractx.Turn(nil), window...))
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeGateway struct {
	retrieveMatches map[contractx.RetrieveMode][]contractx.RetrievalMatch
	action          *contractx.ActionResult
	err             error
	calls           []contractx.ToolCall
}

func (f *fakeGateway) Execute(ctx context.Context, call contractx.ToolCall, customer contractx.CustomerContext) (contractx.ToolOutcome, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return contractx.ToolOutcome{}, f.err
	}
	switch call.Tool {
	case contractx.ToolRetrieve:
		return contractx.ToolOutcome{Call: call, Matches: f.retrieveMatches[call.Args.Mode]}, nil
	default:
		action := f.action
		if action == nil {
			action = &contractx.ActionResult{Status: contractx.ResultApproved, Message: "Done.", TicketID: "CAN-test"}
		}
		return contractx.ToolOutcome{Call: call, Action: action}, nil
	}
}

func orderMatch(orderID, customerID, status string) contractx.RetrievalMatch {
	return contractx.RetrievalMatch{
		DocumentID: orderID,
		Score:      1,
		Payload: map[string]any{
			"domain":       "orders",
			"order_id":     orderID,
			"customer_id":  customerID,
			"order_status": status,
			"order_date":   "2025-07-18",
		},
	}
}

func ordersPlan(query string) contractx.Plan {
	return contractx.Plan{
		Route:  contractx.RouteTools,
		Intent: "order_status",
		ToolCalls: []contractx.ToolCall{{
			Tool: contractx.ToolRetrieve,
			Args: contractx.ToolArgs{Query: query, Mode: contractx.ModeOrders, K: 5},
		}},
		UseMemory:  true,
		Confidence: 0.9,
	}
}

func newTestOrchestrator(
	t *testing.T,
	classifier contractx.Classifier,
	responder contractx.Responder,
	tools contractx.ToolGateway,
) *Orchestrator {
	t.Helper()
	o, err := New(classifier, responder, tools, Config{
		CustomerID:   "C0029",
		SystemPrompt: "You are Alita, a support agent.",
		TokenBudget:  1500,
		Categories:   []string{"Electronics", "Home & Kitchen"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestHandleTurnExplicitOrderQuery(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{plan: ordersPlan("O0002")}
	responder := &fakeResponder{reply: "Your order O0002 shipped on July 18 and is on its way."}
	gateway := &fakeGateway{retrieveMatches: map[contractx.RetrieveMode][]contractx.RetrievalMatch{
		contractx.ModeOrders: {orderMatch("O0002", "C0029", "Shipped")},
	}}

	o := newTestOrchestrator(t, classifier, responder, gateway)

	reply := o.HandleTurn(context.Background(), "Where is my order O0002")
	if reply != responder.reply {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if classifier.calls != 1 {
		t.Fatalf("expected one classification, got %d", classifier.calls)
	}
	if responder.calls != 1 {
		t.Fatalf("expected model path, got %d responder calls", responder.calls)
	}
	if len(gateway.calls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(gateway.calls))
	}

	// The window carries the persona turn and the injected context turn.
	window := responder.windows[0]
	var systems int
	for _, turn := range window {
		if turn.Role == contractx.RoleSystem {
			systems++
		}
	}
	if systems != 2 {
		t.Fatalf("expected persona + context system turns, got %d", systems)
	}

	// History: persona, user, context, assistant.
	if got := len(o.History()); got != 4 {
		t.Fatalf("expected 4 history turns, got %d", got)
	}
}

func TestHandleTurnCancellationWithoutID(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{plan: ordersPlan("C0029")}
	responder := &fakeResponder{reply: "should not be used"}
	gateway := &fakeGateway{} // no orders on file

	o := newTestOrchestrator(t, classifier, responder, gateway)

	reply := o.HandleTurn(context.Background(), "cancel my order")
	if !strings.Contains(strings.ToLower(reply), "order id") {
		t.Fatalf("expected ask-for-id reply, got %q", reply)
	}
	if responder.calls != 0 {
		t.Fatalf("model must not be called on a special case, got %d calls", responder.calls)
	}
}

func TestHandleTurnFollowUpCancelSingleOrder(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{plan: ordersPlan("C0029")}
	responder := &fakeResponder{reply: "should not be used"}
	gateway := &fakeGateway{
		retrieveMatches: map[contractx.RetrieveMode][]contractx.RetrievalMatch{
			contractx.ModeOrders: {orderMatch("O0002", "C0029", "Shipped")},
		},
		action: &contractx.ActionResult{
			Status:   contractx.ResultApproved,
			Message:  "Cancellation request submitted.",
			TicketID: "CAN-42",
		},
	}

	o := newTestOrchestrator(t, classifier, responder, gateway)

	reply := o.HandleTurn(context.Background(), "cancel my order")
	if !strings.Contains(reply, "CAN-42") {
		t.Fatalf("expected ticketed confirmation, got %q", reply)
	}
	if responder.calls != 0 {
		t.Fatal("action confirmations are reported verbatim, not via the model")
	}

	if len(gateway.calls) != 2 {
		t.Fatalf("expected retrieve + follow-up cancel, got %d calls", len(gateway.calls))
	}
	followUp := gateway.calls[1]
	if followUp.Tool != contractx.ToolCancelOrder || followUp.Args.OrderID != "O0002" {
		t.Fatalf("unexpected follow-up call: %#v", followUp)
	}
}

func TestHandleTurnCrossCustomerOrderQuery(t *testing.T) {
	t.Parallel()

	// The guardrail already filtered the foreign order: zero matches arrive.
	classifier := &fakeClassifier{plan: ordersPlan("O0003")}
	responder := &fakeResponder{reply: "should not be used"}
	gateway := &fakeGateway{}

	o := newTestOrchestrator(t, classifier, responder, gateway)

	reply := o.HandleTurn(context.Background(), "where is order O0003")
	if !strings.Contains(strings.ToLower(reply), "couldn't find") {
		t.Fatalf("expected not-found reply, got %q", reply)
	}
	if strings.Contains(reply, "C0054") {
		t.Fatalf("foreign data leaked: %q", reply)
	}
	if responder.calls != 0 {
		t.Fatal("model must not be called on empty order retrieval")
	}
}

func TestHandleTurnCustomerIDSentinel(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{}
	responder := &fakeResponder{}

	o := newTestOrchestrator(t, classifier, responder, &fakeGateway{})

	reply := o.HandleTurn(context.Background(), "what is my customer id?")
	if !strings.Contains(reply, "C0029") {
		t.Fatalf("expected customer id reply, got %q", reply)
	}
	if classifier.calls != 0 {
		t.Fatal("sentinels answer before classification")
	}
}

func TestHandleTurnMalformedPlanFallsBack(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{err: contractx.ErrMalformedPlan}
	responder := &fakeResponder{reply: "Happy to help! What do you need?"}

	o := newTestOrchestrator(t, classifier, responder, &fakeGateway{})

	reply := o.HandleTurn(context.Background(), "hello there")
	if reply != responder.reply {
		t.Fatalf("expected fallback chat reply, got %q", reply)
	}
	if responder.calls != 1 {
		t.Fatalf("expected model called on fallback, got %d", responder.calls)
	}
}

func TestHandleTurnUpstreamFailureDegrades(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{err: contractx.ErrUpstreamUnavailable}
	responder := &fakeResponder{}

	o := newTestOrchestrator(t, classifier, responder, &fakeGateway{})

	reply := o.HandleTurn(context.Background(), "hello")
	if reply != apology {
		t.Fatalf("expected apology, got %q", reply)
	}

	// The failed turn does not poison the next one.
	classifier.err = nil
	classifier.plan = contractx.Plan{Route: contractx.RouteChat, Intent: "greeting", UseMemory: true}
	responder.reply = "Hi again!"
	if got := o.HandleTurn(context.Background(), "hello again"); got != "Hi again!" {
		t.Fatalf("next turn should recover, got %q", got)
	}
}

func TestHandleTurnEmptyInput(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{}
	o := newTestOrchestrator(t, classifier, &fakeResponder{}, &fakeGateway{})

	reply := o.HandleTurn(context.Background(), "   ")
	if reply == "" || reply == apology {
		t.Fatalf("expected a gentle prompt, got %q", reply)
	}
	if classifier.calls != 0 {
		t.Fatal("empty input must not reach the classifier")
	}
}

func TestIsQuit(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"quit", "QUIT", " exit ", "Exit"} {
		if !IsQuit(text) {
			t.Fatalf("expected %q to quit", text)
		}
	}
	for _, text := range []string{"quite good", "exit strategy", "hello"} {
		if IsQuit(text) {
			t.Fatalf("%q must not quit", text)
		}
	}
}
