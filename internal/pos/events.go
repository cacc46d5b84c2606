package pos

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderSettled = "OrderSettled"
	EventOrderFailed  = "OrderFailed"
	EventOrderExpired = "OrderExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID       string        `json:"order_id"`
	InvoiceID     string        `json:"invoice_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TotalCents    int64         `json:"total_cents"`
	Items         []ItemInput   `json:"items"`
}

type OrderSettledPayload struct {
	OrderID          string `json:"order_id"`
	InvoiceID        string `json:"invoice_id"`
	TotalCents       int64  `json:"total_cents"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
}

type OrderFailedPayload struct {
	OrderID   string `json:"order_id"`
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"` // e.g. INVALID_SIGNATURE
}

type OrderExpiredPayload struct {
	OrderID    string    `json:"order_id"`
	InvoiceID  string    `json:"invoice_id"`
	PendingFor string    `json:"pending_for"`
	ExpiredAt  time.Time `json:"expired_at"`
}
