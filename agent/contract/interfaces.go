package contract

import "context"

// Classifier turns one raw utterance into a structured Plan.
type Classifier interface {
	Classify(ctx context.Context, utterance string) (Plan, error)
}

// Responder generates the final free-form reply from a trimmed window.
type Responder interface {
	Respond(ctx context.Context, window []Turn) (string, error)
}

// Retriever is the query surface of one knowledge-domain index. It has no
// mutation capability.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]RetrievalMatch, error)
}

// ToolGateway dispatches one ToolCall under customer scoping.
type ToolGateway interface {
	Execute(ctx context.Context, call ToolCall, customer CustomerContext) (ToolOutcome, error)
}

// OrderStore looks up order records for action validation. It never writes.
type OrderStore interface {
	FindOrder(ctx context.Context, orderID string) (*OrderRecord, error)
}

// ActionLogger is the durable, append-only audit trail for mutative
// requests. Append must not return success before the entry is flushed.
type ActionLogger interface {
	Append(entry ActionLogEntry) error
}
