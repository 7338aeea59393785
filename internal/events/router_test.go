package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-pipeline/internal/orders"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func createdEvent(value float64, priority orders.Priority) *OrderCreated {
	return &OrderCreated{
		OrderDetail: OrderDetail{
			OrderID:    "o1",
			OrderValue: value,
			Priority:   priority,
			Timestamp:  "2024-01-01T00:00:00Z",
		},
		At: time.Now(),
	}
}

func counter(n *int) Handler {
	return func(context.Context, Event) error {
		*n++
		return nil
	}
}

func TestHighValueRule_StrictThreshold(t *testing.T) {
	var started int
	rule := HighValueRule(500, counter(&started))

	assert.False(t, rule.Match(createdEvent(499.99, orders.PriorityLow)))
	assert.False(t, rule.Match(createdEvent(500, orders.PriorityLow)), "boundary value must not match")
	assert.True(t, rule.Match(createdEvent(500.01, orders.PriorityLow)))

	// only created events qualify
	assert.False(t, rule.Match(&OrderFailed{OrderDetail: OrderDetail{OrderValue: 9999}}))
}

func TestUrgentAndCreatedRulesBothFire(t *testing.T) {
	var created, urgent int
	router := NewRouter(testLogger())
	router.Register(
		CreatedRule(counter(&created)),
		UrgentRule(counter(&urgent)),
	)

	router.Dispatch(context.Background(), createdEvent(999, orders.PriorityUrgent))
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, urgent, "urgent rule fires independently of the created rule")

	router.Dispatch(context.Background(), createdEvent(999, orders.PriorityLow))
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, urgent)
}

func TestFailedRule(t *testing.T) {
	var notified int
	rule := FailedRule(counter(&notified))

	assert.True(t, rule.Match(&OrderFailed{Reason: "payment declined"}))
	assert.False(t, rule.Match(createdEvent(10, orders.PriorityLow)))
}

func TestRouter_HandlerErrorIsIsolated(t *testing.T) {
	var after int
	router := NewRouter(testLogger())
	router.Register(
		CreatedRule(func(context.Context, Event) error { return errors.New("boom") }),
		CreatedRule(counter(&after)),
	)

	router.Dispatch(context.Background(), createdEvent(10, orders.PriorityLow))
	assert.Equal(t, 1, after, "a failing handler must not block later rules")
}

func TestRules_MissingDetailNeverMatches(t *testing.T) {
	bare := &OrderCreated{At: time.Now()}
	bare.OrderDetail = OrderDetail{} // zero detail: no value, no priority

	assert.False(t, HighValueRule(500, nil).Match(bare))
	assert.False(t, UrgentRule(nil).Match(bare))
	// any-created matches on the variant alone
	assert.True(t, CreatedRule(nil).Match(bare))
}

func TestAsUrgent(t *testing.T) {
	ev := createdEvent(999, orders.PriorityUrgent)
	urgent := AsUrgent(ev)

	assert.Equal(t, KindOrderUrgent, urgent.Kind())
	require.NotNil(t, urgent.Detail())
	assert.Equal(t, "o1", urgent.Detail().OrderID)
	assert.Equal(t, ev.At, urgent.At)
}

func TestEventEnvelope(t *testing.T) {
	completed := &OrderCompleted{TransactionID: "txn-1", At: time.Now()}
	assert.Equal(t, KindOrderCompleted, completed.Kind())
	assert.Equal(t, "Order Completed", completed.DetailType())

	failed := &OrderFailed{Reason: "x", At: time.Now()}
	assert.Equal(t, "Order Failed", failed.DetailType())
	assert.Equal(t, "order.system", Source)
}
