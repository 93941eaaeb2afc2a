package contract

import "time"

// CustomerContext scopes every order-domain operation to one customer.
// It is constructed once at process start and never mutated.
type CustomerContext struct {
	ID string `json:"customer_id"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of conversation history. Turns are append-only; the
// window manager removes old ones but never edits them.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type Route string

const (
	// RouteTools fetches new data through the guarded tool set.
	RouteTools Route = "tools"
	// RouteContextAnswer answers from results already in the window.
	RouteContextAnswer Route = "context_answer"
	// RouteChat is small talk with no retrieval.
	RouteChat Route = "chat"
)

type RetrieveMode string

const (
	ModeCatalog    RetrieveMode = "catalog"
	ModeFAQ        RetrieveMode = "faq"
	ModePolicy     RetrieveMode = "policy"
	ModeOrders     RetrieveMode = "orders"
	ModeCatalogFAQ RetrieveMode = "catalog+faq"
)

type ToolName string

const (
	ToolRetrieve       ToolName = "retrieve"
	ToolCancelOrder    ToolName = "cancel_order"
	ToolInitiateReturn ToolName = "initiate_return"
)

type ToolArgs struct {
	Query     string       `json:"query,omitempty"`
	Mode      RetrieveMode `json:"mode,omitempty"`
	K         int          `json:"k,omitempty"`
	OrderID   string       `json:"order_id,omitempty"`
	ProductID string       `json:"product_id,omitempty"`
}

type ToolCall struct {
	Tool ToolName `json:"tool"`
	Args ToolArgs `json:"args"`
}

// Plan is the routing decision for a single utterance. It is produced by the
// intent router and then amended by exactly two deterministic correction
// rules before execution. Confidence is informational only and never gates
// execution.
type Plan struct {
	Route      Route      `json:"route"`
	Intent     string     `json:"intent"`
	ToolCalls  []ToolCall `json:"tool_calls"`
	UseMemory  bool       `json:"use_memory"`
	Confidence float64    `json:"confidence"`
}

// RetrievalMatch is one ranked result from a retrieval index.
type RetrievalMatch struct {
	DocumentID string         `json:"document_id"`
	Score      float64        `json:"score"`
	Payload    map[string]any `json:"payload"`
}

// ProductFocus is the catalog item the conversation currently centers on.
type ProductFocus struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

// RetrievalContext is the normalized, disambiguated view of one turn's tool
// output. It is rebuilt from scratch every turn and never cached.
type RetrievalContext struct {
	ResolvedQuery string           `json:"resolved_query"`
	Matches       []RetrievalMatch `json:"matches,omitempty"`
	OrderID       string           `json:"order_id,omitempty"`
	Ambiguous     bool             `json:"ambiguous"`

	OrderMatches     []RetrievalMatch `json:"order_matches,omitempty"`
	CatalogMatches   []RetrievalMatch `json:"catalog_matches,omitempty"`
	CatalogQuery     string           `json:"catalog_query,omitempty"`
	OrderQuery       string           `json:"order_query,omitempty"`
	CatalogAmbiguous bool             `json:"catalog_ambiguous"`
	Focus            *ProductFocus    `json:"focus,omitempty"`
}

const (
	ActionCancelOrder    = "cancel_order"
	ActionInitiateReturn = "initiate_return"
)

const (
	ResultApproved = "approved"
	ResultRejected = "rejected"
	ResultDenied   = "denied"
)

// ActionLogEntry is one line of the durable audit trail. Entries record the
// intent to mutate, never an actual mutation of order records, and are
// immutable once appended.
type ActionLogEntry struct {
	TS         time.Time `json:"ts"`
	CustomerID string    `json:"customer_id"`
	Action     string    `json:"action"`
	OrderID    string    `json:"order_id"`
	ProductID  string    `json:"product_id,omitempty"`
	Result     string    `json:"result"`
	Reason     string    `json:"reason,omitempty"`
	TicketID   string    `json:"ticket_id,omitempty"`
}

// ActionResult is the user-facing outcome of a cancel/return request.
type ActionResult struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	TicketID string `json:"ticket_id,omitempty"`
}

// ToolOutcome is the result of dispatching one ToolCall. Retrieval calls
// fill Matches; action calls fill Action. Error carries a recoverable
// per-call failure without aborting the turn.
type ToolOutcome struct {
	Call    ToolCall         `json:"call"`
	Matches []RetrievalMatch `json:"matches,omitempty"`
	Action  *ActionResult    `json:"action,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// OrderProduct is one line item of an order record.
type OrderProduct struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

// OrderRecord is the read-only order row used for action validation.
type OrderRecord struct {
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	Status     string         `json:"order_status"`
	Date       string         `json:"order_date"`
	Products   []OrderProduct `json:"products,omitempty"`
}
