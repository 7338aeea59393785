// Package consumer pulls order submissions off the durable queue,
// persists them idempotently and emits the OrderCreated lifecycle event.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-order-pipeline/internal/events"
	"github.com/imrishuroy/go-order-pipeline/internal/metrics"
	"github.com/imrishuroy/go-order-pipeline/internal/orders"
	"github.com/imrishuroy/go-order-pipeline/internal/queue"
)

// EventSink receives the consumer's emitted events for routing.
type EventSink interface {
	Dispatch(ctx context.Context, ev events.Event)
}

// Consumer dequeues batches of submissions and processes each message.
// Safety under concurrent workers comes from per-message visibility
// ownership plus the idempotent upsert at the persistence boundary, not
// from any shared lock.
type Consumer struct {
	queue        queue.Queue
	store        *orders.Store
	sink         EventSink
	recorder     *metrics.Recorder
	log          *logrus.Logger
	batchSize    int
	maxReceives  int
	pollInterval time.Duration
	nowFunc      func() time.Time
}

type Options struct {
	BatchSize    int
	MaxReceives  int
	PollInterval time.Duration
}

func New(q queue.Queue, store *orders.Store, sink EventSink, recorder *metrics.Recorder, log *logrus.Logger, opts Options) *Consumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxReceives <= 0 {
		opts.MaxReceives = 3
	}
	return &Consumer{
		queue:        q,
		store:        store,
		sink:         sink,
		recorder:     recorder,
		log:          log,
		batchSize:    opts.BatchSize,
		maxReceives:  opts.MaxReceives,
		pollInterval: opts.PollInterval,
		nowFunc:      time.Now,
	}
}

// Run polls the queue with the given number of workers until ctx is done.
func (c *Consumer) Run(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			return c.poll(ctx, worker)
		})
	}
	return g.Wait()
}

func (c *Consumer) poll(ctx context.Context, worker int) error {
	log := c.log.WithField("worker", worker)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := c.queue.Dequeue(ctx, c.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Error("consumer: dequeue failed")
			c.sleep(ctx)
			continue
		}
		if len(msgs) == 0 {
			c.sleep(ctx)
			continue
		}

		for _, msg := range msgs {
			c.Handle(ctx, msg)
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	if c.pollInterval <= 0 {
		return
	}
	select {
	case <-time.After(c.pollInterval):
	case <-ctx.Done():
	}
}

// Handle processes one delivery. A message past the receive limit goes to
// the dead-letter store; a processing failure leaves the message unacked
// so the queue redelivers it after the visibility timeout.
func (c *Consumer) Handle(ctx context.Context, msg queue.Message) {
	if msg.ReceiveCount > c.maxReceives {
		c.log.WithFields(logrus.Fields{
			"message_id":    msg.ID,
			"receive_count": msg.ReceiveCount,
		}).Warn("consumer: receive limit exceeded, dead-lettering")
		if err := c.queue.DeadLetter(ctx, msg); err != nil {
			c.log.WithError(err).Error("consumer: dead-letter move failed")
			return
		}
		c.recorder.Count(ctx, metrics.MessagesDeadLettered, 1)
		return
	}

	if err := c.Process(ctx, msg.Body); err != nil {
		// no ack: the message reappears after the visibility timeout
		c.log.WithFields(logrus.Fields{
			"message_id":    msg.ID,
			"receive_count": msg.ReceiveCount,
		}).WithError(err).Error("consumer: processing failed, message will be retried")
		return
	}

	if err := c.queue.Ack(ctx, msg); err != nil {
		// the upsert makes the inevitable redelivery harmless
		c.log.WithField("message_id", msg.ID).WithError(err).Error("consumer: ack failed")
	}
}

// Process persists the submission and emits OrderCreated. The persistence
// write is the critical path: its error propagates so the queue retries.
// Event emission is best-effort.
//
// A redelivery arriving after the workflow already advanced the order is
// recognized by the store's conditional write and acked without emitting
// a second OrderCreated, so a finished order is never re-processed.
func (c *Consumer) Process(ctx context.Context, body string) error {
	var sub orders.Submission
	if err := json.Unmarshal([]byte(body), &sub); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	now := c.nowFunc()
	order := sub.ToOrder(now)

	if err := c.store.Put(ctx, order); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			c.log.WithFields(logrus.Fields{
				"order_id": order.OrderID,
				"order_ts": order.Timestamp,
			}).Info("consumer: order already advanced, dropping redelivery")
			return nil
		}
		return fmt.Errorf("persist order: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"priority": order.Priority,
		"value":    order.OrderValue,
	}).Info("consumer: order persisted")
	c.recorder.Count(ctx, metrics.OrdersPersisted, 1)

	// Dispatch logs handler failures itself and never propagates them:
	// a routing problem must not fail the ack and re-run persistence.
	c.sink.Dispatch(ctx, events.NewOrderCreated(order, now))

	return nil
}

// HandleSQSEvent adapts the consumer to a Lambda SQS trigger, where the
// runtime owns receive, retry and dead-letter policy. Returning an error
// makes the runtime redeliver the batch.
func (c *Consumer) HandleSQSEvent(ctx context.Context, ev lambdaevents.SQSEvent) error {
	for _, rec := range ev.Records {
		receiveCount := 1
		if rc, ok := rec.Attributes["ApproximateReceiveCount"]; ok {
			if n, err := strconv.Atoi(rc); err == nil {
				receiveCount = n
			}
		}
		c.log.WithFields(logrus.Fields{
			"message_id":    rec.MessageId,
			"receive_count": receiveCount,
		}).Info("consumer: received SQS record")

		if err := c.Process(ctx, rec.Body); err != nil {
			return err
		}
	}
	return nil
}
