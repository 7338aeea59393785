// Package workflow drives each persisted order through its processing
// steps with an explicit in-process finite-state machine. One execution
// exists per order; distinct executions share no mutable state besides
// the external store, whose conditional upserts keep status moving only
// forward.
package workflow

import "fmt"

// Step enumerates the workflow states.
type Step string

const (
	StepValidate         Step = "Validate"
	StepProcessPayment   Step = "ProcessPayment"
	StepUpdateInventory  Step = "UpdateInventory"
	StepSendNotification Step = "SendNotification"
	StepHandleFailure    Step = "HandleFailure"
	StepSuccess          Step = "Success"
	StepFailed           Step = "Failed"
)

// transitions is the full state graph. Every stage's negative branch and
// error path funnels into the single HandleFailure compensation state.
var transitions = map[Step]struct{ ok, fail Step }{
	StepValidate:         {ok: StepProcessPayment, fail: StepHandleFailure},
	StepProcessPayment:   {ok: StepUpdateInventory, fail: StepHandleFailure},
	StepUpdateInventory:  {ok: StepSendNotification, fail: StepHandleFailure},
	StepSendNotification: {ok: StepSuccess, fail: StepHandleFailure},
	StepHandleFailure:    {ok: StepFailed, fail: StepFailed},
}

// Next returns the step following s for a positive or negative outcome.
func Next(s Step, ok bool) (Step, error) {
	t, found := transitions[s]
	if !found {
		return "", fmt.Errorf("no transition from step %q", s)
	}
	if ok {
		return t.ok, nil
	}
	return t.fail, nil
}

// Terminal reports whether the execution has finished.
func (s Step) Terminal() bool {
	return s == StepSuccess || s == StepFailed
}
