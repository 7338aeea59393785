package orders

import "time"

// SubmissionItem is a single line item in an order submission.
type SubmissionItem struct {
	Name     string  `json:"name" validate:"required"`
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Price    float64 `json:"price" validate:"required,gt=0"` // price per unit
}

// Submission is the payload accepted at the ingress boundary and carried
// through the queue to the consumer.
type Submission struct {
	OrderID       string           `json:"orderId" validate:"required"`
	CustomerName  string           `json:"customerName" validate:"required"`
	CustomerEmail string           `json:"customerEmail" validate:"required,email"`
	Priority      string           `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	OrderValue    float64          `json:"orderValue" validate:"required,gt=0"` // total the client claims
	Items         []SubmissionItem `json:"items" validate:"required,min=1,dive"`
	Timestamp     string           `json:"timestamp" validate:"required"` // sort key component
}

// ToOrder converts an accepted submission into the persisted record shape.
func (s Submission) ToOrder(now time.Time) Order {
	items := make([]Item, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, Item{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}

	processed := now
	return Order{
		OrderID:   s.OrderID,
		Timestamp: s.Timestamp,
		Status:    StatusSubmitted,
		Priority:  ParsePriority(s.Priority),
		Customer: Customer{
			Name:  s.CustomerName,
			Email: s.CustomerEmail,
		},
		Items:       items,
		OrderValue:  s.OrderValue,
		CreatedAt:   now,
		UpdatedAt:   now,
		ProcessedAt: &processed,
	}
}
