package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/alitalabs/alita/agent/contract"
)

const defaultCallTimeout = 30 * time.Second

// Chat wraps a chat model as the responder capability: one Respond operation
// over an ordered message window, with a bounded timeout and a single retry.
type Chat struct {
	model   einomodel.BaseChatModel
	timeout time.Duration
}

var _ contractx.Responder = (*Chat)(nil)

func NewChat(model einomodel.BaseChatModel, timeout time.Duration) (*Chat, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Chat{model: model, timeout: timeout}, nil
}

func (c *Chat) Respond(ctx context.Context, window []contractx.Turn) (string, error) {
	if len(window) == 0 {
		return "", fmt.Errorf("%w: empty message window", contractx.ErrValidation)
	}

	messages := make([]*schema.Message, 0, len(window))
	for _, turn := range window {
		messages = append(messages, toSchemaMessage(turn))
	}

	msg, err := GenerateWithRetry(ctx, c.model, messages, c.timeout)
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(msg.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty completion", contractx.ErrUpstreamUnavailable)
	}
	return reply, nil
}

// GenerateWithRetry invokes the model under a per-call timeout, retrying
// exactly once with no backoff before surfacing the failure.
func GenerateWithRetry(
	ctx context.Context,
	model einomodel.BaseChatModel,
	messages []*schema.Message,
	timeout time.Duration,
) (*schema.Message, error) {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		msg, err := model.Generate(callCtx, messages)
		cancel()
		if err == nil && msg != nil {
			return msg, nil
		}
		if err == nil {
			err = errors.New("nil completion message")
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

func toSchemaMessage(turn contractx.Turn) *schema.Message {
	switch turn.Role {
	case contractx.RoleSystem:
		return schema.SystemMessage(turn.Text)
	case contractx.RoleAssistant:
		return schema.AssistantMessage(turn.Text, nil)
	default:
		return schema.UserMessage(turn.Text)
	}
}
