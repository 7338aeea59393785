package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-order-pipeline/internal/events"
	"github.com/imrishuroy/go-order-pipeline/internal/metrics"
	"github.com/imrishuroy/go-order-pipeline/internal/orders"
)

// Notifier delivers a lifecycle event to filtered subscribers.
type Notifier interface {
	Publish(ctx context.Context, ev events.Event) error
}

// EventSink receives emitted lifecycle events for routing.
type EventSink interface {
	Dispatch(ctx context.Context, ev events.Event)
}

// Execution is one workflow run over a single order. It accumulates the
// per-step results until a terminal step is reached.
type Execution struct {
	Order            orders.Order
	Step             Step
	Validation       *orders.ValidationResult
	Payment          *PaymentResult
	InventoryUpdates []orders.InventoryUpdate
	NotificationSent bool
	FailureReason    string

	// persisted tracks the status last written to the store, used as the
	// expected value of the next conditional advance.
	persisted orders.Status
}

// Orchestrator runs workflow executions against the external store.
type Orchestrator struct {
	store         *orders.Store
	gateway       PaymentGateway
	notifier      Notifier
	sink          EventSink
	recorder      *metrics.Recorder
	maxOrderValue float64
	log           *logrus.Logger
	nowFunc       func() time.Time
}

func NewOrchestrator(
	store *orders.Store,
	gateway PaymentGateway,
	notifier Notifier,
	sink EventSink,
	recorder *metrics.Recorder,
	maxOrderValue float64,
	log *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:         store,
		gateway:       gateway,
		notifier:      notifier,
		sink:          sink,
		recorder:      recorder,
		maxOrderValue: maxOrderValue,
		log:           log,
		nowFunc:       time.Now,
	}
}

// Start loads the order and drives its execution to a terminal step.
// Steps run strictly sequentially; every step persists its result with a
// conditional upsert before the next one runs, so a redelivered start for
// an order another execution owns stops on ErrStatusMismatch instead of
// repeating work.
func (w *Orchestrator) Start(ctx context.Context, orderID, timestamp string) (*Execution, error) {
	o, err := w.store.Get(ctx, orderID, timestamp)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	if o.Status != orders.StatusSubmitted {
		w.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"status":   o.Status,
		}).Info("workflow: order already processed, skipping")
		return &Execution{Order: *o, Step: terminalStepFor(o.Status), persisted: o.Status}, nil
	}

	ex := &Execution{
		Order:     *o,
		Step:      StepValidate,
		persisted: o.Status,
	}

	for !ex.Step.Terminal() {
		if err := w.runStep(ctx, ex); err != nil {
			if errors.Is(err, orders.ErrStatusMismatch) {
				w.log.WithField("order_id", orderID).Info("workflow: superseded by a competing execution")
				return ex, nil
			}
			return ex, err
		}
	}

	return ex, nil
}

// terminalStepFor maps a persisted status onto the terminal step the
// owning execution reached. The failed variants count as Failed even when
// compensation has not finished writing FAILED yet.
func terminalStepFor(s orders.Status) Step {
	switch s {
	case orders.StatusFailed, orders.StatusValidationFailed, orders.StatusPaymentFailed:
		return StepFailed
	default:
		return StepSuccess
	}
}

func (w *Orchestrator) runStep(ctx context.Context, ex *Execution) error {
	w.log.WithFields(logrus.Fields{
		"order_id": ex.Order.OrderID,
		"step":     ex.Step,
	}).Debug("workflow: running step")

	switch ex.Step {
	case StepValidate:
		return w.validate(ctx, ex)
	case StepProcessPayment:
		return w.processPayment(ctx, ex)
	case StepUpdateInventory:
		return w.updateInventory(ctx, ex)
	case StepSendNotification:
		return w.sendNotification(ctx, ex)
	case StepHandleFailure:
		return w.handleFailure(ctx, ex)
	case StepSuccess, StepFailed:
		return nil
	default:
		return fmt.Errorf("unknown step %q", ex.Step)
	}
}

func (w *Orchestrator) validate(ctx context.Context, ex *Execution) error {
	result := Validate(ex.Order, w.maxOrderValue)
	ex.Validation = &result
	ex.Order.ValidationResult = &result

	if result.Valid {
		if err := w.advance(ctx, ex, orders.StatusValidated); err != nil {
			return err
		}
	} else {
		ex.FailureReason = "order validation failed"
		ex.Order.FailureReason = ex.FailureReason
		if err := w.advance(ctx, ex, orders.StatusValidationFailed); err != nil {
			return err
		}
	}

	next, err := Next(ex.Step, result.Valid)
	if err != nil {
		return err
	}
	ex.Step = next
	return nil
}

func (w *Orchestrator) processPayment(ctx context.Context, ex *Execution) error {
	result, err := w.gateway.Charge(ctx, ex.Order)
	if err != nil {
		// gateway exception: same compensation path as a decline
		ex.FailureReason = fmt.Sprintf("payment error: %v", err)
		ex.Order.FailureReason = ex.FailureReason
		ex.Order.PaymentStatus = "error"
		if err := w.advance(ctx, ex, orders.StatusPaymentFailed); err != nil {
			return err
		}
		ex.Step = StepHandleFailure
		return nil
	}

	ex.Payment = &result
	ex.Order.TransactionID = result.TransactionID

	if result.Approved {
		ex.Order.PaymentStatus = "approved"
		if err := w.advance(ctx, ex, orders.StatusPaymentProcessed); err != nil {
			return err
		}
	} else {
		ex.Order.PaymentStatus = "declined"
		ex.FailureReason = "payment declined"
		ex.Order.FailureReason = ex.FailureReason
		if err := w.advance(ctx, ex, orders.StatusPaymentFailed); err != nil {
			return err
		}
	}

	next, err := Next(ex.Step, result.Approved)
	if err != nil {
		return err
	}
	ex.Step = next
	return nil
}

func (w *Orchestrator) updateInventory(ctx context.Context, ex *Execution) error {
	now := w.nowFunc()
	updates := make([]orders.InventoryUpdate, 0, len(ex.Order.Items))
	for _, it := range ex.Order.Items {
		updates = append(updates, orders.InventoryUpdate{
			ItemName:       it.Name,
			QuantityChange: -it.Quantity,
			AppliedAt:      now,
		})
	}
	ex.InventoryUpdates = updates
	ex.Order.InventoryUpdates = updates

	if err := w.advance(ctx, ex, orders.StatusInventoryUpdated); err != nil {
		return err
	}

	next, err := Next(ex.Step, true)
	if err != nil {
		return err
	}
	ex.Step = next
	return nil
}

func (w *Orchestrator) sendNotification(ctx context.Context, ex *Execution) error {
	now := w.nowFunc()
	ex.Order.CompletedAt = &now
	ex.Order.NotificationSent = true
	ex.NotificationSent = true

	if err := w.advance(ctx, ex, orders.StatusCompleted); err != nil {
		return err
	}

	completed := &events.OrderCompleted{
		OrderDetail:   events.DetailFromOrder(ex.Order),
		TransactionID: ex.Order.TransactionID,
		At:            now,
	}
	if err := w.notifier.Publish(ctx, completed); err != nil {
		// delivery is best-effort and never fails the step
		w.log.WithField("order_id", ex.Order.OrderID).WithError(err).Warn("workflow: completion notification failed")
	}

	w.recorder.Count(ctx, metrics.OrdersCompleted, 1)

	next, err := Next(ex.Step, true)
	if err != nil {
		return err
	}
	ex.Step = next
	return nil
}

// handleFailure is the single compensation path shared by every stage.
func (w *Orchestrator) handleFailure(ctx context.Context, ex *Execution) error {
	now := w.nowFunc()
	ex.Order.FailedAt = &now
	if ex.Order.FailureReason == "" {
		ex.Order.FailureReason = ex.FailureReason
	}

	if err := w.advance(ctx, ex, orders.StatusFailed); err != nil {
		return err
	}

	w.sink.Dispatch(ctx, &events.OrderFailed{
		OrderDetail: events.DetailFromOrder(ex.Order),
		Reason:      ex.Order.FailureReason,
		At:          now,
	})

	w.recorder.Count(ctx, metrics.OrdersFailed, 1)

	next, err := Next(ex.Step, true)
	if err != nil {
		return err
	}
	ex.Step = next
	return nil
}

// advance persists the execution's order with the given status, expecting
// the store to still hold the previously persisted one.
func (w *Orchestrator) advance(ctx context.Context, ex *Execution, next orders.Status) error {
	expected := ex.persisted
	ex.Order.Status = next
	if err := w.store.Advance(ctx, ex.Order, expected); err != nil {
		return err
	}
	ex.persisted = next
	return nil
}

// Validate runs the independent submission checks. Both value bounds are
// exclusive: an order worth exactly maxValue is invalid.
func Validate(o orders.Order, maxValue float64) orders.ValidationResult {
	result := orders.ValidationResult{
		HasOrderID:      o.OrderID != "",
		HasValidValue:   o.OrderValue > 0 && o.OrderValue < maxValue,
		HasItems:        len(o.Items) > 0,
		ItemPricesValid: true,
	}
	for _, it := range o.Items {
		if it.Price <= 0 {
			result.ItemPricesValid = false
			break
		}
	}
	result.Valid = result.HasOrderID && result.HasValidValue && result.HasItems && result.ItemPricesValid
	return result
}
