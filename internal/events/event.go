package events

import (
	"time"

	"github.com/imrishuroy/go-order-pipeline/internal/orders"
)

// Source identifies this system on every emitted event.
const Source = "order.system"

// Kind names one lifecycle event type. The kind strings double as the
// subscription preference keys.
type Kind string

const (
	KindOrderCreated   Kind = "orderCreated"
	KindOrderCompleted Kind = "orderCompleted"
	KindOrderFailed    Kind = "orderFailed"
	KindOrderUrgent    Kind = "orderUrgent"
)

// OrderDetail is the payload carried by every order lifecycle event.
type OrderDetail struct {
	OrderID       string          `json:"orderId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	OrderValue    float64         `json:"orderValue"`
	Priority      orders.Priority `json:"priority"`
	Items         []orders.Item   `json:"items"`
	Timestamp     string          `json:"timestamp"`
}

// Event is the closed set of lifecycle events. One concrete type exists
// per kind; routers and publishers match the variants exhaustively.
// Events are ephemeral: routed, never persisted.
type Event interface {
	Kind() Kind
	DetailType() string
	Detail() *OrderDetail
	OccurredAt() time.Time
}

// OrderCreated is emitted by the consumer once an order is durably persisted.
type OrderCreated struct {
	OrderDetail OrderDetail
	At          time.Time
}

func (e *OrderCreated) Kind() Kind            { return KindOrderCreated }
func (e *OrderCreated) DetailType() string    { return "Order Created" }
func (e *OrderCreated) Detail() *OrderDetail  { return &e.OrderDetail }
func (e *OrderCreated) OccurredAt() time.Time { return e.At }

// OrderCompleted is emitted by the workflow's notification step.
type OrderCompleted struct {
	OrderDetail   OrderDetail
	TransactionID string
	At            time.Time
}

func (e *OrderCompleted) Kind() Kind            { return KindOrderCompleted }
func (e *OrderCompleted) DetailType() string    { return "Order Completed" }
func (e *OrderCompleted) Detail() *OrderDetail  { return &e.OrderDetail }
func (e *OrderCompleted) OccurredAt() time.Time { return e.At }

// OrderFailed is emitted by the workflow's failure compensation path.
type OrderFailed struct {
	OrderDetail OrderDetail
	Reason      string
	At          time.Time
}

func (e *OrderFailed) Kind() Kind            { return KindOrderFailed }
func (e *OrderFailed) DetailType() string    { return "Order Failed" }
func (e *OrderFailed) Detail() *OrderDetail  { return &e.OrderDetail }
func (e *OrderFailed) OccurredAt() time.Time { return e.At }

// OrderUrgent is the notification-facing variant produced by the urgent
// router rule for urgent-priority OrderCreated events.
type OrderUrgent struct {
	OrderDetail OrderDetail
	At          time.Time
}

func (e *OrderUrgent) Kind() Kind            { return KindOrderUrgent }
func (e *OrderUrgent) DetailType() string    { return "Order Urgent" }
func (e *OrderUrgent) Detail() *OrderDetail  { return &e.OrderDetail }
func (e *OrderUrgent) OccurredAt() time.Time { return e.At }

// DetailFromOrder builds the event payload from a persisted order.
func DetailFromOrder(o orders.Order) OrderDetail {
	return OrderDetail{
		OrderID:       o.OrderID,
		CustomerName:  o.Customer.Name,
		CustomerEmail: o.Customer.Email,
		OrderValue:    o.OrderValue,
		Priority:      o.Priority,
		Items:         o.Items,
		Timestamp:     o.Timestamp,
	}
}

// NewOrderCreated wraps a persisted order into its creation event.
func NewOrderCreated(o orders.Order, at time.Time) *OrderCreated {
	return &OrderCreated{OrderDetail: DetailFromOrder(o), At: at}
}

// AsUrgent re-tags a created event for the urgent notification path.
func AsUrgent(e Event) *OrderUrgent {
	d := e.Detail()
	if d == nil {
		return &OrderUrgent{At: e.OccurredAt()}
	}
	return &OrderUrgent{OrderDetail: *d, At: e.OccurredAt()}
}
