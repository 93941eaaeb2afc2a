package contract

import "errors"

var (
	// ErrMalformedPlan means the model response failed plan schema
	// validation. Recoverable: the turn falls back to the chat route.
	ErrMalformedPlan = errors.New("malformed intent plan")
	// ErrUnknownTool means the dispatcher received an unrecognized tool or
	// mode. Recoverable: the call yields an empty outcome.
	ErrUnknownTool = errors.New("unknown tool or mode")
	// ErrGuardrail marks an attempted cross-customer order access. Never
	// recovered into data exposure.
	ErrGuardrail = errors.New("guardrail violation")
	// ErrOrderNotFound means no order record matches the requested id.
	ErrOrderNotFound = errors.New("order not found")

	ErrUpstreamTimeout     = errors.New("upstream call timed out")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrValidation          = errors.New("validation failed")
)
