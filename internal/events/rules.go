package events

import (
	"github.com/imrishuroy/go-order-pipeline/internal/orders"
)

// The standard rule set. Predicates treat a missing detail payload as
// non-matching, never as an error.
//
// Note: an urgent-priority OrderCreated matches both the created and the
// urgent rules, producing two notification dispatches. The rules are
// independent and this double delivery is the system's observed behavior.

// HighValueRule starts the workflow for created orders strictly above the
// value threshold. An order worth exactly the threshold does not match.
func HighValueRule(threshold float64, start Handler) Rule {
	return Rule{
		Name: "high-value",
		Match: func(ev Event) bool {
			created, ok := ev.(*OrderCreated)
			if !ok {
				return false
			}
			d := created.Detail()
			return d != nil && d.OrderValue > threshold
		},
		Handle: start,
	}
}

// CreatedRule notifies created-filtered subscribers for every OrderCreated.
func CreatedRule(notify Handler) Rule {
	return Rule{
		Name: "any-created",
		Match: func(ev Event) bool {
			_, ok := ev.(*OrderCreated)
			return ok
		},
		Handle: notify,
	}
}

// UrgentRule notifies urgent-filtered subscribers for urgent-priority
// OrderCreated events, independent of the completion-notify path.
func UrgentRule(notify Handler) Rule {
	return Rule{
		Name: "urgent",
		Match: func(ev Event) bool {
			created, ok := ev.(*OrderCreated)
			if !ok {
				return false
			}
			d := created.Detail()
			return d != nil && d.Priority == orders.PriorityUrgent
		},
		Handle: notify,
	}
}

// FailedRule notifies failed-filtered subscribers for every OrderFailed.
func FailedRule(notify Handler) Rule {
	return Rule{
		Name: "failed",
		Match: func(ev Event) bool {
			_, ok := ev.(*OrderFailed)
			return ok
		},
		Handle: notify,
	}
}
