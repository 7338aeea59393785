package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-pipeline/internal/events"
	"github.com/imrishuroy/go-order-pipeline/internal/orders"
	"github.com/imrishuroy/go-order-pipeline/internal/queue"
	"github.com/imrishuroy/go-order-pipeline/internal/storetest"
)

type recordingSink struct {
	dispatched []events.Event
}

func (s *recordingSink) Dispatch(_ context.Context, ev events.Event) {
	s.dispatched = append(s.dispatched, ev)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func submissionBody(t *testing.T) string {
	t.Helper()
	body, err := json.Marshal(orders.Submission{
		OrderID:       "o1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Priority:      "high",
		OrderValue:    42,
		Items:         []orders.SubmissionItem{{Name: "widget", Quantity: 1, Price: 42}},
		Timestamp:     "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	return string(body)
}

func newConsumer(t *testing.T, q queue.Queue, fake *storetest.DynamoFake) (*Consumer, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	store := orders.NewStore(fake, "orders")
	c := New(q, store, sink, nil, quietLogger(), Options{BatchSize: 10, MaxReceives: 3})
	return c, sink
}

func sqsEvent(t *testing.T, bodies ...string) lambdaevents.SQSEvent {
	t.Helper()
	ev := lambdaevents.SQSEvent{}
	for i, body := range bodies {
		ev.Records = append(ev.Records, lambdaevents.SQSMessage{
			MessageId:  fmt.Sprintf("m-%d", i),
			Body:       body,
			Attributes: map[string]string{"ApproximateReceiveCount": "1"},
		})
	}
	return ev
}

func TestConsumer_ProcessPersistsAndEmits(t *testing.T) {
	ctx := context.Background()
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	q := queue.NewMemory(time.Minute)
	c, sink := newConsumer(t, q, fake)

	require.NoError(t, c.Process(ctx, submissionBody(t)))

	require.Len(t, fake.Items("orders"), 1)
	require.Len(t, sink.dispatched, 1)
	created, ok := sink.dispatched[0].(*events.OrderCreated)
	require.True(t, ok)
	assert.Equal(t, "o1", created.Detail().OrderID)
	assert.Equal(t, orders.PriorityHigh, created.Detail().Priority)
}

func TestConsumer_RedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	q := queue.NewMemory(time.Minute)
	c, _ := newConsumer(t, q, fake)

	body := submissionBody(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Process(ctx, body))
	}
	assert.Len(t, fake.Items("orders"), 1, "one persisted record per (orderId, timestamp)")
}

func TestConsumer_RedeliveryAfterWorkflowFinishedIsDropped(t *testing.T) {
	ctx := context.Background()
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	q := queue.NewMemory(time.Minute)
	c, sink := newConsumer(t, q, fake)

	body := submissionBody(t)
	require.NoError(t, c.Process(ctx, body))
	require.Len(t, sink.dispatched, 1)

	// the workflow finishes the order between two deliveries
	store := orders.NewStore(fake, "orders")
	got, err := store.Get(ctx, "o1", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	done := *got
	done.Status = orders.StatusCompleted
	require.NoError(t, store.Advance(ctx, done, orders.StatusSubmitted))

	// the redelivery is acked without resetting the record or re-emitting
	require.NoError(t, q.Enqueue(ctx, body, nil))
	msgs, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	c.Handle(ctx, msgs[0])

	assert.Equal(t, 0, q.Len())
	assert.Len(t, sink.dispatched, 1, "no second OrderCreated")

	got, err = store.Get(ctx, "o1", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, got.Status)
}

func TestConsumer_HandleAcksOnSuccess(t *testing.T) {
	ctx := context.Background()
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	q := queue.NewMemory(time.Minute)
	c, _ := newConsumer(t, q, fake)

	require.NoError(t, q.Enqueue(ctx, submissionBody(t), nil))
	msgs, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	c.Handle(ctx, msgs[0])
	assert.Equal(t, 0, q.Len(), "acked message is gone")
	assert.Empty(t, q.DeadLetters())
}

func TestConsumer_PersistenceFailureLeavesMessageForRetry(t *testing.T) {
	ctx := context.Background()
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	fake.PutErr = errors.New("provisioned throughput exceeded")
	q := queue.NewMemory(0)
	c, sink := newConsumer(t, q, fake)

	require.NoError(t, q.Enqueue(ctx, submissionBody(t), nil))
	msgs, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)

	c.Handle(ctx, msgs[0])
	assert.Equal(t, 1, q.Len(), "unacked message stays queued")
	assert.Empty(t, sink.dispatched, "no event until the order is durably persisted")
}

func TestConsumer_PoisonMessageDeadLettersAfterMaxReceives(t *testing.T) {
	ctx := context.Background()
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	q := queue.NewMemory(0)
	c, _ := newConsumer(t, q, fake)

	require.NoError(t, q.Enqueue(ctx, "{not json", nil))

	// three failed deliveries, then the fourth receive escalates
	for i := 0; i < 4; i++ {
		msgs, err := q.Dequeue(ctx, 1)
		require.NoError(t, err)
		require.Len(t, msgs, 1, "attempt %d", i+1)
		c.Handle(ctx, msgs[0])
	}

	assert.Equal(t, 0, q.Len(), "message no longer in the main queue")
	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "{not json", dead[0].Body)
	assert.Empty(t, fake.Items("orders"))
}

func TestConsumer_RunStopsOnContextCancel(t *testing.T) {
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	q := queue.NewMemory(time.Minute)
	c, _ := newConsumer(t, q, fake)
	c.pollInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 2) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}

func TestConsumer_HandleSQSEvent(t *testing.T) {
	ctx := context.Background()
	fake := storetest.NewDynamoFake().WithTable("orders", "order_id", "order_ts")
	q := queue.NewMemory(time.Minute)
	c, sink := newConsumer(t, q, fake)

	ev := sqsEvent(t, submissionBody(t))
	require.NoError(t, c.HandleSQSEvent(ctx, ev))
	assert.Len(t, fake.Items("orders"), 1)
	assert.Len(t, sink.dispatched, 1)

	// a bad record propagates so the Lambda runtime retries the batch
	bad := sqsEvent(t, "{not json")
	assert.Error(t, c.HandleSQSEvent(ctx, bad))
}
