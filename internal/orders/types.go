package orders

import "time"

// Status is the persisted lifecycle state of an order. Transitions only
// move forward along the workflow graph or divert to StatusFailed.
type Status string

const (
	StatusSubmitted        Status = "SUBMITTED"
	StatusValidated        Status = "VALIDATED"
	StatusValidationFailed Status = "VALIDATION_FAILED"
	StatusPaymentProcessed Status = "PAYMENT_PROCESSED"
	StatusPaymentFailed    Status = "PAYMENT_FAILED"
	StatusInventoryUpdated Status = "INVENTORY_UPDATED"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
)

// Priority of an order as supplied by the client.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority maps free-form input onto a known priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Customer identifies the person an order belongs to.
type Customer struct {
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email" json:"email"`
}

// Item is a single order line.
type Item struct {
	Name     string  `dynamodbav:"name" json:"name"`
	Quantity int     `dynamodbav:"quantity" json:"quantity"`
	Price    float64 `dynamodbav:"price" json:"price"`
}

// ValidationResult records each validation check independently; Valid is
// the logical AND of all of them.
type ValidationResult struct {
	HasOrderID      bool `dynamodbav:"has_order_id" json:"hasOrderId"`
	HasValidValue   bool `dynamodbav:"has_valid_value" json:"hasValidValue"`
	HasItems        bool `dynamodbav:"has_items" json:"hasItems"`
	ItemPricesValid bool `dynamodbav:"item_prices_valid" json:"itemPricesValid"`
	Valid           bool `dynamodbav:"valid" json:"valid"`
}

// InventoryUpdate is one line of the inventory adjustment log.
type InventoryUpdate struct {
	ItemName       string    `dynamodbav:"item_name" json:"itemName"`
	QuantityChange int       `dynamodbav:"quantity_change" json:"quantityChange"`
	AppliedAt      time.Time `dynamodbav:"applied_at" json:"appliedAt"`
}

// Order represents the item stored in the orders table.
// (order_id, order_ts) is the unique composite key.
type Order struct {
	OrderID          string            `dynamodbav:"order_id" json:"orderId"`  // PK
	Timestamp        string            `dynamodbav:"order_ts" json:"timestamp"` // SK, client-supplied
	Status           Status            `dynamodbav:"status" json:"status"`
	Priority         Priority          `dynamodbav:"priority" json:"priority"`
	Customer         Customer          `dynamodbav:"customer" json:"customer"`
	Items            []Item            `dynamodbav:"items,omitempty" json:"items"`
	OrderValue       float64           `dynamodbav:"order_value" json:"orderValue"`
	CreatedAt        time.Time         `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt        time.Time         `dynamodbav:"updated_at" json:"updatedAt"`
	ProcessedAt      *time.Time        `dynamodbav:"processed_at,omitempty" json:"processedAt,omitempty"`
	ValidationResult *ValidationResult `dynamodbav:"validation_result,omitempty" json:"validationResult,omitempty"`
	PaymentStatus    string            `dynamodbav:"payment_status,omitempty" json:"paymentStatus,omitempty"`
	TransactionID    string            `dynamodbav:"transaction_id,omitempty" json:"transactionId,omitempty"`
	InventoryUpdates []InventoryUpdate `dynamodbav:"inventory_updates,omitempty" json:"inventoryUpdates,omitempty"`
	NotificationSent bool              `dynamodbav:"notification_sent" json:"notificationSent"`
	CompletedAt      *time.Time        `dynamodbav:"completed_at,omitempty" json:"completedAt,omitempty"`
	FailedAt         *time.Time        `dynamodbav:"failed_at,omitempty" json:"failedAt,omitempty"`
	FailureReason    string            `dynamodbav:"failure_reason,omitempty" json:"failureReason,omitempty"`
}

// ItemsTotal sums quantity*price over all items.
func (o *Order) ItemsTotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += float64(it.Quantity) * it.Price
	}
	return sum
}
