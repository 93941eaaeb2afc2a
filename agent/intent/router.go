package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/alitalabs/alita/agent/contract"
)

// Router classifies raw utterances into structured plans via the language
// model and applies the deterministic correction rules.
type Router struct {
	runner  compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

var _ contractx.Classifier = (*Router)(nil)

func NewRouter(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	timeout time.Duration,
) (*Router, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: router model is required", contractx.ErrValidation)
	}
	runner, err := compileRouterGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{runner: runner, timeout: timeout}, nil
}

func compileRouterGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add router prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add router model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add router edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add router edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add router edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("intent.router_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}

// Classify produces a corrected Plan for one utterance. Transport failures
// are retried once under the call timeout; a response that does not parse
// into the plan shape yields ErrMalformedPlan.
func (r *Router) Classify(ctx context.Context, utterance string) (contractx.Plan, error) {
	if strings.TrimSpace(utterance) == "" {
		return contractx.Plan{}, fmt.Errorf("%w: utterance is empty", contractx.ErrValidation)
	}

	msg, err := r.invoke(ctx, utterance)
	if err != nil {
		return contractx.Plan{}, err
	}

	plan, err := ParsePlan(msg.Content)
	if err != nil {
		return contractx.Plan{}, err
	}

	ApplyCorrections(&plan, utterance)
	return plan, nil
}

func (r *Router) invoke(ctx context.Context, utterance string) (*schema.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		msg, err := r.runner.Invoke(callCtx, map[string]any{"input": utterance})
		cancel()
		if err == nil && msg != nil {
			return msg, nil
		}
		if err == nil {
			err = errors.New("nil router message")
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v", contractx.ErrUpstreamTimeout, lastErr)
	}
	return nil, fmt.Errorf("%w: %v", contractx.ErrUpstreamUnavailable, lastErr)
}

// FallbackPlan is the recovery plan used when classification returns a
// malformed response: plain chat, no tool calls, no memory.
func FallbackPlan() contractx.Plan {
	return contractx.Plan{
		Route:     contractx.RouteChat,
		Intent:    "fallback",
		ToolCalls: nil,
		UseMemory: false,
	}
}

type planWire struct {
	Route      string         `json:"route"`
	Intent     string         `json:"intent"`
	ToolCalls  []toolCallWire `json:"tool_calls"`
	UseMemory  bool           `json:"use_memory"`
	Confidence float64        `json:"confidence"`
}

type toolCallWire struct {
	Tool string `json:"tool"`
	Args struct {
		Query     string `json:"query"`
		Mode      string `json:"mode"`
		K         int    `json:"k"`
		OrderID   string `json:"order_id"`
		ProductID string `json:"product_id"`
	} `json:"args"`
}

// ParsePlan validates the model's JSON against the plan schema and returns a
// typed Plan. The route determines the variant: only route=tools carries
// tool calls.
func ParsePlan(content string) (contractx.Plan, error) {
	raw := extractJSON(content)
	if raw == "" {
		return contractx.Plan{}, fmt.Errorf("%w: no JSON object in response", contractx.ErrMalformedPlan)
	}

	var wire planWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return contractx.Plan{}, fmt.Errorf("%w: %v", contractx.ErrMalformedPlan, err)
	}

	route := contractx.Route(strings.ToLower(strings.TrimSpace(wire.Route)))
	switch route {
	case contractx.RouteTools, contractx.RouteContextAnswer, contractx.RouteChat:
	default:
		return contractx.Plan{}, fmt.Errorf("%w: invalid route %q", contractx.ErrMalformedPlan, wire.Route)
	}

	if wire.Confidence < 0 || wire.Confidence > 1 {
		return contractx.Plan{}, fmt.Errorf("%w: confidence %v out of range", contractx.ErrMalformedPlan, wire.Confidence)
	}

	plan := contractx.Plan{
		Route:      route,
		Intent:     strings.TrimSpace(wire.Intent),
		UseMemory:  wire.UseMemory,
		Confidence: wire.Confidence,
	}

	if route != contractx.RouteTools {
		return plan, nil
	}

	for _, call := range wire.ToolCalls {
		typed, err := parseToolCall(call)
		if err != nil {
			return contractx.Plan{}, err
		}
		plan.ToolCalls = append(plan.ToolCalls, typed)
	}
	return plan, nil
}

func parseToolCall(wire toolCallWire) (contractx.ToolCall, error) {
	tool := contractx.ToolName(strings.TrimSpace(wire.Tool))
	switch tool {
	case contractx.ToolRetrieve:
		mode := contractx.RetrieveMode(strings.ToLower(strings.TrimSpace(string(wire.Args.Mode))))
		switch mode {
		case contractx.ModeCatalog, contractx.ModeFAQ, contractx.ModePolicy, contractx.ModeOrders, contractx.ModeCatalogFAQ:
		default:
			return contractx.ToolCall{}, fmt.Errorf("%w: invalid mode %q", contractx.ErrMalformedPlan, wire.Args.Mode)
		}
		k := wire.Args.K
		if k <= 0 {
			k = DefaultK
		}
		if k > 20 {
			k = 20
		}
		return contractx.ToolCall{
			Tool: tool,
			Args: contractx.ToolArgs{
				Query: strings.TrimSpace(wire.Args.Query),
				Mode:  mode,
				K:     k,
			},
		}, nil

	case contractx.ToolCancelOrder:
		orderID := strings.ToUpper(strings.TrimSpace(wire.Args.OrderID))
		if orderID == "" {
			return contractx.ToolCall{}, fmt.Errorf("%w: cancel_order requires order_id", contractx.ErrMalformedPlan)
		}
		return contractx.ToolCall{
			Tool: tool,
			Args: contractx.ToolArgs{OrderID: orderID},
		}, nil

	case contractx.ToolInitiateReturn:
		orderID := strings.ToUpper(strings.TrimSpace(wire.Args.OrderID))
		productID := strings.ToUpper(strings.TrimSpace(wire.Args.ProductID))
		if orderID == "" || productID == "" {
			return contractx.ToolCall{}, fmt.Errorf("%w: initiate_return requires order_id and product_id", contractx.ErrMalformedPlan)
		}
		return contractx.ToolCall{
			Tool: tool,
			Args: contractx.ToolArgs{OrderID: orderID, ProductID: productID},
		}, nil

	default:
		return contractx.ToolCall{}, fmt.Errorf("%w: unknown tool %q", contractx.ErrMalformedPlan, wire.Tool)
	}
}

// extractJSON strips markdown fences and surrounding prose around the first
// top-level JSON object.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ""
	}
	return trimmed[start : end+1]
}
