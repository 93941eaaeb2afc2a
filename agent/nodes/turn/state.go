// Package turnnode holds the node functions of the turn-handling graph. Each
// node takes the shared GraphState plus its injected collaborators and
// returns the advanced state.
package turnnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/alitalabs/alita/agent/contract"
	"github.com/alitalabs/alita/agent/resolve"
)

var ErrInvalidUtterance = errors.New("utterance is empty")

type GraphInput struct {
	Text    string
	History []contractx.Turn
	Focus   *contractx.ProductFocus
}

type GraphOutput struct {
	Reply   string
	Plan    contractx.Plan
	Context contractx.RetrievalContext
	Focus   *contractx.ProductFocus
	// Canned is set when the reply was produced without a model call.
	Canned bool
}

type GraphState struct {
	Utterance string
	Now       time.Time
	History   []contractx.Turn
	Focus     *contractx.ProductFocus

	Plan     contractx.Plan
	Outcomes []contractx.ToolOutcome
	Context  contractx.RetrievalContext
	Decision resolve.Decision

	// Warning is appended to the final reply, canned or generated.
	Warning string

	Window []contractx.Turn
	Reply  string
	Canned bool
}

func ValidateTurn(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidUtterance
	}

	return &GraphState{
		Utterance: text,
		Now:       nowFn().UTC(),
		History:   in.History,
		Focus:     in.Focus,
	}, nil
}
