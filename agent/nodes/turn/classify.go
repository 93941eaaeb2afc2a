package turnnode

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	contractx "github.com/alitalabs/alita/agent/contract"
	intentx "github.com/alitalabs/alita/agent/intent"
)

// ClassifyIntent runs the intent router. A malformed plan is a recoverable
// local failure: the turn falls back to the chat route with no tool calls
// instead of aborting.
func ClassifyIntent(ctx context.Context, st *GraphState, classifier contractx.Classifier) (*GraphState, error) {
	plan, err := classifier.Classify(ctx, st.Utterance)
	if err != nil {
		if errors.Is(err, contractx.ErrMalformedPlan) {
			log.Warn().Err(err).Msg("malformed plan, falling back to chat route")
			st.Plan = intentx.FallbackPlan()
			return st, nil
		}
		return nil, err
	}

	st.Plan = plan
	return st, nil
}
