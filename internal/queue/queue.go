// Package queue provides the at-least-once message buffer between the
// ingress gateway and the order consumer. Messages carry a per-delivery
// visibility lock: a dequeued message stays invisible until acked or until
// its visibility timeout lapses, after which it is delivered again.
package queue

import "context"

// Message is one queued order submission plus its delivery metadata.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
	Attributes    map[string]string
	// ReceiveCount counts deliveries of this message including the
	// current one. The consumer escalates to the dead-letter store once
	// it exceeds the configured maximum.
	ReceiveCount int
}

// Queue is the durable at-least-once buffer.
//
// Dequeue hands back messages holding an implicit visibility lock; Ack
// deletes a message after successful processing. Unacked messages
// reappear after the visibility timeout. DeadLetter moves a message to
// the dead-letter store for manual inspection instead of dropping it.
type Queue interface {
	Enqueue(ctx context.Context, body string, attributes map[string]string) error
	Dequeue(ctx context.Context, max int) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	DeadLetter(ctx context.Context, msg Message) error
}
