package turnnode

import (
	"context"

	contractx "github.com/alitalabs/alita/agent/contract"
)

// CallModel generates the assistant reply from the trimmed window.
func CallModel(ctx context.Context, st *GraphState, responder contractx.Responder) (*GraphState, error) {
	reply, err := responder.Respond(ctx, st.Window)
	if err != nil {
		return nil, err
	}
	st.Reply = reply
	return st, nil
}

func FinalizeReply(st *GraphState) (GraphOutput, error) {
	reply := st.Reply
	if st.Warning != "" {
		if reply != "" {
			reply += "\n\n"
		}
		reply += st.Warning
	}
	if reply == "" {
		reply = "I'm sorry, I couldn't come up with an answer to that. Could you rephrase?"
	}

	return GraphOutput{
		Reply:   reply,
		Plan:    st.Plan,
		Context: st.Context,
		Focus:   st.Focus,
		Canned:  st.Canned,
	}, nil
}
