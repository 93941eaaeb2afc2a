// Package orchestrator composes the turn pipeline: classify, dispatch,
// resolve, special-case, window, model. One turn fully completes before the
// next begins; history and the customer context are owned here and nowhere
// else.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/alitalabs/alita/agent/contract"
	turnnode "github.com/alitalabs/alita/agent/nodes/turn"
)

const defaultTokenBudget = 1500

const apology = "I'm sorry, something went wrong on my end. Could you try that again?"

type Config struct {
	CustomerID   string
	SystemPrompt string
	TokenBudget  int
	// Categories seeds the empty-catalog suggestion branch.
	Categories []string
}

type Orchestrator struct {
	classifier contractx.Classifier
	responder  contractx.Responder
	tools      contractx.ToolGateway

	customer   contractx.CustomerContext
	budget     int
	categories []string

	graphRunner compose.Runnable[turnnode.GraphInput, turnnode.GraphOutput]

	history []contractx.Turn
	focus   *contractx.ProductFocus

	now func() time.Time
}

func New(
	classifier contractx.Classifier,
	responder contractx.Responder,
	tools contractx.ToolGateway,
	cfg Config,
) (*Orchestrator, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", contractx.ErrValidation)
	}
	if responder == nil {
		return nil, fmt.Errorf("%w: responder is required", contractx.ErrValidation)
	}
	if tools == nil {
		return nil, fmt.Errorf("%w: tool gateway is required", contractx.ErrValidation)
	}

	customerID := strings.ToUpper(strings.TrimSpace(cfg.CustomerID))
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", contractx.ErrValidation)
	}

	budget := cfg.TokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	o := &Orchestrator{
		classifier: classifier,
		responder:  responder,
		tools:      tools,
		customer:   contractx.CustomerContext{ID: customerID},
		budget:     budget,
		categories: cfg.Categories,
		now:        time.Now,
	}

	if prompt := strings.TrimSpace(cfg.SystemPrompt); prompt != "" {
		o.history = append(o.history, contractx.Turn{
			Role:      contractx.RoleSystem,
			Text:      prompt,
			Timestamp: o.now().UTC(),
		})
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// IsQuit recognizes the loop's only exit sentinel, checked by the caller
// before a turn is handled.
func IsQuit(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "quit", "exit":
		return true
	}
	return false
}

// HandleTurn runs one full turn and returns the assistant reply. Every
// failure is absorbed here: the reply degrades to a plain apology and the
// next turn starts clean.
func (o *Orchestrator) HandleTurn(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return "Please type a message so I can help."
	}

	out, err := o.graphRunner.Invoke(ctx, turnnode.GraphInput{
		Text:    text,
		History: o.history,
		Focus:   o.focus,
	})
	if err != nil {
		log.Error().Err(err).Msg("turn failed")
		return apology
	}

	o.recordTurn(text, out)
	return out.Reply
}

// recordTurn persists the turn into history: the user turn, the retrieval
// context (as a system turn, so later context_answer routes can reuse it),
// and the assistant reply.
func (o *Orchestrator) recordTurn(text string, out turnnode.GraphOutput) {
	now := o.now().UTC()

	o.history = append(o.history, contractx.Turn{
		Role:      contractx.RoleUser,
		Text:      strings.TrimSpace(text),
		Timestamp: now,
	})
	if ctxTurn := turnnode.ContextTurnFor(out.Context, now); ctxTurn != nil {
		o.history = append(o.history, *ctxTurn)
	}
	o.history = append(o.history, contractx.Turn{
		Role:      contractx.RoleAssistant,
		Text:      out.Reply,
		Timestamp: now,
	})

	if out.Focus != nil {
		o.focus = out.Focus
	}
}

// History returns a copy of the conversation history.
func (o *Orchestrator) History() []contractx.Turn {
	out := make([]contractx.Turn, len(o.history))
	copy(out, o.history)
	return out
}
