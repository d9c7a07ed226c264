package dto

import "github.com/orderbridge/backend/internal/domain/fulfillment"

// OrderWebhookPayload is the platform's webhook body; only the order
// identifier is read here, the full order is fetched through the API so
// processing always sees the current state.
type OrderWebhookPayload struct {
	ID      int64 `json:"id"`
	OrderID int64 `json:"order_id"`
}

// ResolveOrderID returns the referenced order: order webhooks carry it as
// "id", fulfillment webhooks as "order_id"
func (p *OrderWebhookPayload) ResolveOrderID() int64 {
	if p.OrderID != 0 {
		return p.OrderID
	}
	return p.ID
}

// OperationOutcome is one operation's terminal result in a webhook or retry
// response
type OperationOutcome struct {
	Operation string `json:"operation"`
	State     string `json:"state"`
	Reference string `json:"reference,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewOperationOutcome maps an orchestration outcome to its wire shape
func NewOperationOutcome(operation string, outcome *fulfillment.Outcome) OperationOutcome {
	if outcome == nil {
		return OperationOutcome{Operation: operation}
	}
	return OperationOutcome{
		Operation: operation,
		State:     outcome.State.String(),
		Reference: outcome.Reference,
		Attempts:  outcome.Attempts,
		ErrorKind: outcome.ErrorKind.String(),
		Message:   outcome.Message,
	}
}

// WebhookAck is the acknowledgement body for webhook deliveries
type WebhookAck struct {
	Received  bool               `json:"received"`
	Duplicate bool               `json:"duplicate,omitempty"`
	Outcomes  []OperationOutcome `json:"outcomes,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// RetryRequest is the admin batch retry request
type RetryRequest struct {
	Operation string   `json:"operation" binding:"required,oneof=invoice awb"`
	OrderIDs  []string `json:"order_ids" binding:"required,min=1,max=100,dive,required"`
}

// RetryOrderResult is one order's result in a batch retry response
type RetryOrderResult struct {
	OrderID string            `json:"order_id"`
	Outcome *OperationOutcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// RetryResponse is the admin batch retry response
type RetryResponse struct {
	Operation string             `json:"operation"`
	Results   []RetryOrderResult `json:"results"`
}
