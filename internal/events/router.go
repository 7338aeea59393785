package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Handler consumes a matched event. Handler errors are logged by the
// router and never stop other rules from firing.
type Handler func(ctx context.Context, ev Event) error

// Rule pairs a side-effect-free predicate with a dispatch action. Rules
// are independent: every matching rule fires, and evaluation order is
// irrelevant.
type Rule struct {
	Name   string
	Match  func(ev Event) bool
	Handle Handler
}

// Router fans lifecycle events out to the handlers of all matching rules.
type Router struct {
	rules []Rule
	log   *logrus.Logger
}

func NewRouter(log *logrus.Logger) *Router {
	return &Router{log: log}
}

// Register appends a rule. Registration happens during wiring, before any
// dispatching; Router is not safe for concurrent Register/Dispatch.
func (r *Router) Register(rules ...Rule) {
	r.rules = append(r.rules, rules...)
}

// Dispatch evaluates every rule against ev and runs the handlers of all
// that match. Dispatch never fails: handler errors are logged per rule so
// one handler cannot suppress another.
func (r *Router) Dispatch(ctx context.Context, ev Event) {
	for _, rule := range r.rules {
		if !rule.Match(ev) {
			continue
		}
		if err := rule.Handle(ctx, ev); err != nil {
			r.log.WithFields(logrus.Fields{
				"rule":  rule.Name,
				"event": ev.Kind(),
			}).WithError(err).Error("router: rule handler failed")
		}
	}
}
