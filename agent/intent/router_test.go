package intent

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/alitalabs/alita/agent/contract"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	idx       int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func TestClassifyExplicitOrderQuery(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Role:    schema.Assistant,
				Content: `{"route":"tools","intent":"order_status","tool_calls":[{"tool":"retrieve","args":{"query":"O0002","mode":"orders","k":5}}],"use_memory":true,"confidence":0.92}`,
			},
		},
	}

	router, err := NewRouter(context.Background(), fake, "router prompt", 0)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	plan, err := router.Classify(context.Background(), "Where is my order O0002")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if plan.Route != contractx.RouteTools {
		t.Fatalf("unexpected route: %s", plan.Route)
	}
	if len(plan.ToolCalls) != 1 {
		t.Fatalf("expected exactly one tool call, got %d", len(plan.ToolCalls))
	}
	call := plan.ToolCalls[0]
	if call.Args.Mode != contractx.ModeOrders || call.Args.Query != "O0002" {
		t.Fatalf("unexpected tool call: %#v", call)
	}
}

func TestClassifyMalformedResponse(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{Role: schema.Assistant, Content: "sure, let me look that up for you!"},
		},
	}

	router, err := NewRouter(context.Background(), fake, "router prompt", 0)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	_, err = router.Classify(context.Background(), "hello")
	if !errors.Is(err, contractx.ErrMalformedPlan) {
		t.Fatalf("expected ErrMalformedPlan, got %v", err)
	}
}

func TestClassifyModelUnavailable(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{err: errors.New("connection refused")}

	router, err := NewRouter(context.Background(), fake, "router prompt", 0)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	_, err = router.Classify(context.Background(), "hello")
	if !errors.Is(err, contractx.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestParsePlan(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "fenced json",
			content: "```json\n{\"route\":\"chat\",\"intent\":\"greeting\",\"use_memory\":false,\"confidence\":0.8}\n```",
		},
		{
			name:    "context answer route",
			content: `{"route":"context_answer","intent":"follow_up","confidence":0.7}`,
		},
		{
			name:    "invalid route",
			content: `{"route":"maybe","intent":"x","confidence":0.5}`,
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			content: `{"route":"chat","intent":"x","confidence":1.4}`,
			wantErr: true,
		},
		{
			name:    "invalid mode",
			content: `{"route":"tools","intent":"x","confidence":0.5,"tool_calls":[{"tool":"retrieve","args":{"query":"q","mode":"warehouse"}}]}`,
			wantErr: true,
		},
		{
			name:    "cancel without order id",
			content: `{"route":"tools","intent":"cancel","confidence":0.5,"tool_calls":[{"tool":"cancel_order","args":{}}]}`,
			wantErr: true,
		},
		{
			name:    "no json at all",
			content: "I think you want the catalog.",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePlan(tc.content)
			if tc.wantErr {
				if !errors.Is(err, contractx.ErrMalformedPlan) {
					t.Fatalf("expected ErrMalformedPlan, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePlan() error = %v", err)
			}
		})
	}
}

func TestParsePlanDropsToolCallsForNonToolRoutes(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlan(`{"route":"chat","intent":"greeting","confidence":0.9,"tool_calls":[{"tool":"retrieve","args":{"query":"q","mode":"catalog"}}]}`)
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if len(plan.ToolCalls) != 0 {
		t.Fatalf("chat route must not carry tool calls, got %d", len(plan.ToolCalls))
	}
}
