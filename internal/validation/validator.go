package validation

import (
	"fmt"
	"math"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-order-pipeline/internal/orders"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// register struct-level validation for Submission to ensure the
	// claimed orderValue matches the sum of (price * quantity) of items.
	v.RegisterStructValidation(submissionStructValidation, orders.Submission{})

	return v
}

// submissionStructValidation verifies the aggregated total of items equals orderValue (within cents)
func submissionStructValidation(sl validatorv10.StructLevel) {
	sub := sl.Current().Interface().(orders.Submission)

	var sum float64
	for _, it := range sub.Items {
		sum += float64(it.Quantity) * it.Price
	}

	sumCents := int(math.Round(sum * 100))
	valueCents := int(math.Round(sub.OrderValue * 100))
	if sumCents != valueCents {
		sl.ReportError(sub.OrderValue, "orderValue", "OrderValue", "value_match_items",
			fmt.Sprintf("items sum %.2f != orderValue %.2f", sum, sub.OrderValue))
	}
}
